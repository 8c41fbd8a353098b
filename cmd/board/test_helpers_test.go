package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"familyboard/internal/auth"
	"familyboard/internal/board"
	"familyboard/internal/config"
	"familyboard/internal/daemon"
	"familyboard/internal/logging"
	"familyboard/internal/store"
	"familyboard/internal/testsupport"
)

const testFamily = "fam-cli"

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	server     *httptest.Server
	stages     []board.Stage
	token      string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("BOARD_TOKEN", "")
	t.Setenv("BOARD_SERVER_URL", "")
	t.Setenv("BOARD_JWT_SECRET", "")

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	stages := testsupport.SeedStages(t, st, testFamily, "New", "Making", "Packed")

	handler, err := daemon.NewHandler(cfg, daemon.BuildServices(cfg, st, nil, logging.NewNop(), nil), logging.NewNop())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	token, err := auth.Issue(cfg.Auth.JWTSecret, cfg.Auth.Issuer, auth.Principal{UserID: "robin", FamilyID: testFamily}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg, server.URL, token)

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		server:     server,
		stages:     stages,
		token:      token,
		configPath: configPath,
	}
}

func (env *cliTestEnv) seedOrder(t *testing.T, orderID string, stage board.Stage) {
	t.Helper()
	testsupport.SeedAssignment(t, env.store, testFamily, orderID, stage.ID, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC))
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, serverURL, token string) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\n\n[auth]\njwt_secret = %q\nissuer = %q\n\n[client]\nserver_url = %q\ntoken = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.DataDir,
		cfg.Auth.JWTSecret,
		cfg.Auth.Issuer,
		serverURL,
		token,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
