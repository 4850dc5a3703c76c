package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "CORS_ALLOWED_ORIGINS", "SNAPSHOT_STORE", "SAVES_DIR", "NATS_URL", "TIME_LIMIT_SEC"} {
		t.Setenv(key, "")
	}

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Port != "3000" {
		t.Errorf("port = %q, want 3000", cfg.Server.Port)
	}
	if cfg.Snapshots.Store != storeFile || cfg.Snapshots.Dir != "saves" {
		t.Errorf("snapshots = %+v", cfg.Snapshots)
	}
	if cfg.Events.NatsURL != "" {
		t.Errorf("nats url = %q, want empty", cfg.Events.NatsURL)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "8080"
quiz:
  time_limit_sec: 20
snapshots:
  store: postgres
events:
  nats_url: nats://file:4222
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "")
	t.Setenv("SNAPSHOT_STORE", "")
	t.Setenv("TIME_LIMIT_SEC", "")
	t.Setenv("NATS_URL", "nats://env:4222")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080 from file", cfg.Server.Port)
	}
	if cfg.Quiz.TimeLimitSec != 20 {
		t.Errorf("time limit = %d, want 20", cfg.Quiz.TimeLimitSec)
	}
	if cfg.Snapshots.Store != storePostgres {
		t.Errorf("store = %q", cfg.Snapshots.Store)
	}
	if cfg.Events.NatsURL != "nats://env:4222" {
		t.Errorf("nats url = %q, env should win", cfg.Events.NatsURL)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	t.Setenv("SNAPSHOT_STORE", "redis")
	if _, err := loadConfig(""); err == nil {
		t.Error("expected error for unknown store")
	}

	t.Setenv("SNAPSHOT_STORE", "")
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
