package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

const minSecretLength = 16

// CheckDirectoryAccess verifies that a directory exists and is readable and
// writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSigningSecret reports whether a bearer token signing secret is usable.
// The secret itself is never echoed.
func CheckSigningSecret(secret string) Result {
	const name = "Token signing secret"
	switch {
	case secret == "":
		return Result{Name: name, Detail: "missing (set auth.jwt_secret or BOARD_JWT_SECRET)"}
	case len(secret) < minSecretLength:
		return Result{Name: name, Detail: fmt.Sprintf("too short (%d characters, need %d)", len(secret), minSecretLength)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d characters", len(secret))}
	}
}

// CheckBindAvailable confirms the API bind address can be listened on. A
// running daemon holding the port is reported as in use.
func CheckBindAvailable(ctx context.Context, addr string) Result {
	const name = "API bind"
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (in use, is boardd already running?)", addr)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	_ = ln.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", addr)}
}
