package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"familyboard/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSigningSecret(t *testing.T) {
	cases := []struct {
		secret string
		passed bool
	}{
		{"", false},
		{"s3cr7", false},
		{"0123456789abcdef", true},
	}
	for _, tc := range cases {
		result := CheckSigningSecret(tc.secret)
		if result.Passed != tc.passed {
			t.Fatalf("secret %q: passed=%v detail=%s", tc.secret, result.Passed, result.Detail)
		}
		if tc.secret != "" && strings.Contains(result.Detail, tc.secret) {
			t.Fatalf("detail leaks secret: %s", result.Detail)
		}
	}
}

func TestCheckBindAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	busy := CheckBindAvailable(context.Background(), ln.Addr().String())
	if busy.Passed {
		t.Fatalf("expected busy port to fail, got %s", busy.Detail)
	}

	free := CheckBindAvailable(context.Background(), "127.0.0.1:0")
	if !free.Passed {
		t.Fatalf("expected ephemeral port to pass, got %s", free.Detail)
	}
}

func TestRunAll(t *testing.T) {
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}

	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Auth.JWTSecret = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Token signing secret" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}
