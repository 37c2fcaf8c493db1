package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if cfg.Store.Path != nil || cfg.Server.Addr != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[store]
path = "/tmp/times.db"
must-exist = true

[server]
addr = ":9090"
token-ttl = "2h"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Store.Path == nil || *cfg.Store.Path != "/tmp/times.db" {
		t.Fatalf("unexpected store path: %+v", cfg.Store)
	}
	if cfg.Store.MustExist == nil || !*cfg.Store.MustExist {
		t.Fatalf("expected must-exist")
	}
	if cfg.Server.Addr == nil || *cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr: %+v", cfg.Server)
	}
	if cfg.Auth.Credentials != nil {
		t.Fatalf("expected unset credentials")
	}
}

func TestDefaultPathsFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "sprintwatch", "config.toml") {
		t.Fatalf("unexpected config path %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "sprintwatch", "sprintwatch.db") {
		t.Fatalf("unexpected db path %s", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv(EnvTokenTTL, "90m")
	if got := EnvDuration(EnvTokenTTL, time.Hour); got != 90*time.Minute {
		t.Fatalf("unexpected duration %s", got)
	}
	t.Setenv(EnvTokenTTL, "bogus")
	if got := EnvDuration(EnvTokenTTL, time.Hour); got != time.Hour {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SPRINTWATCH_ADDR=:7000\nSPRINTWATCH_DB=/from/env.db\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv(EnvAddr, ":8000")
	t.Setenv(EnvDB, "")
	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv(EnvAddr); got != ":8000" {
		t.Fatalf("expected existing value to win, got %s", got)
	}
}
