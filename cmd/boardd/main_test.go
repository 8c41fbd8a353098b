package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"familyboard/internal/logging"
	"familyboard/internal/testsupport"
)

func writeConfig(t *testing.T, dataDir, secret string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf("[paths]\ndata_dir = %q\napi_bind = \"127.0.0.1:0\"\n\n[auth]\njwt_secret = %q\n", dataDir, secret)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServerConfigRequiresSecret(t *testing.T) {
	t.Setenv("BOARD_JWT_SECRET", "")
	path := writeConfig(t, t.TempDir(), "")
	if _, err := loadServerConfig(path, ""); err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("expected missing secret error, got %v", err)
	}

	path = writeConfig(t, t.TempDir(), testsupport.TestSecret)
	cfg, err := loadServerConfig(path, "127.0.0.1:9999")
	if err != nil {
		t.Fatalf("loadServerConfig: %v", err)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("expected bind override, got %q", cfg.Paths.APIBind)
	}
}

func TestBuildDaemonServesHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, cleanup, err := buildDaemon(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	select {
	case <-d.Ready():
	case err := <-done:
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not become ready")
	}

	resp, err := http.Get("http://" + d.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestCheckCommandReportsHealthyDatabase(t *testing.T) {
	path := writeConfig(t, filepath.Join(t.TempDir(), "data"), testsupport.TestSecret)
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "check"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Database healthy") || !strings.Contains(out.String(), "Server config:  ok") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestCheckCommandRemoteReportsServerHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, cleanup, err := buildDaemon(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	defer cleanup()
	srv := httptest.NewServer(d.Handler())
	defer srv.Close()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--remote", srv.URL})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check --remote: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Status:         ok") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	srv.Close()
	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--remote", srv.URL})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected unreachable server to fail")
	}
}
