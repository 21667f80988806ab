package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Backend.Endpoints) != 3 {
		t.Errorf("expected 3 endpoints, got %d", len(cfg.Backend.Endpoints))
	}
	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Errorf("expected default base_url, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Dashboard.PageSize != 5 {
		t.Errorf("expected page size 5, got %d", cfg.Dashboard.PageSize)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
backend:
  base_url: https://truthguard.example
  timeout_seconds: 5
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Backend.BaseURL != "https://truthguard.example" {
		t.Errorf("unexpected base_url %q", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Backend.Timeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Backend.Timeout())
	}
	// Defaults should still be set for unspecified fields
	if cfg.Backend.SessionCookie != "session" {
		t.Errorf("expected default session cookie, got %q", cfg.Backend.SessionCookie)
	}
	if len(cfg.Backend.Endpoints) == 0 {
		t.Error("expected default endpoints")
	}
	if cfg.Dashboard.RefreshSchedule != "@every 30m" {
		t.Errorf("expected default schedule, got %q", cfg.Dashboard.RefreshSchedule)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Backend.DetailsPath != "/get_article_details/" {
		t.Errorf("unexpected details path %q", cfg.Backend.DetailsPath)
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}

func TestSessionFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	if err := os.WriteFile(".env", []byte("FACTHISTORY_TEST_SESSION=abc123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FACTHISTORY_TEST_SESSION", "")
	os.Unsetenv("FACTHISTORY_TEST_SESSION")

	if err := LoadEnv(); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	b := Backend{SessionEnv: "FACTHISTORY_TEST_SESSION"}
	if got := b.SessionValue(); got != "abc123" {
		t.Errorf("expected session from .env, got %q", got)
	}
	if (Backend{}).SessionValue() != "" {
		t.Error("expected empty session without env name")
	}
}
