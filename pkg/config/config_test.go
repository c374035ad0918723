package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Outbox.BatchSize != 10 || cfg.Outbox.MaxAttempts != 8 {
		t.Fatalf("unexpected outbox defaults %+v", cfg.Outbox)
	}
	if cfg.Outbox.SweepInterval != 20*time.Second {
		t.Fatalf("expected 20s sweep interval, got %v", cfg.Outbox.SweepInterval)
	}
	if cfg.Scheduler.UnreadPollInterval != 180*time.Second {
		t.Fatalf("expected 180s poll interval, got %v", cfg.Scheduler.UnreadPollInterval)
	}
	if cfg.DB.Path != filepath.Join(dir, "skydesk.db") {
		t.Fatalf("expected db path under data dir, got %q", cfg.DB.Path)
	}
	if cfg.Redis.Enabled() {
		t.Fatalf("redis should be disabled without url or address")
	}
	if cfg.App.LogFormat != "json" || cfg.DB.SlowQuery != 250*time.Millisecond {
		t.Fatalf("unexpected log format %q or slow query threshold %v", cfg.App.LogFormat, cfg.DB.SlowQuery)
	}
	if cfg.Redis.EventChannel != "desktop" {
		t.Fatalf("unexpected event channel %q", cfg.Redis.EventChannel)
	}
	if cfg.Session.Persistent() {
		t.Fatalf("session vault should be disabled without a passphrase")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/custom.db")
	t.Setenv(EnvOutboxSweepEvery, "5s")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvSessionPassphrase, "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.DB.Path != "/tmp/custom.db" {
		t.Fatalf("absolute db path should be kept, got %q", cfg.DB.Path)
	}
	if cfg.Outbox.SweepInterval != 5*time.Second {
		t.Fatalf("expected 5s sweep interval, got %v", cfg.Outbox.SweepInterval)
	}
	if !cfg.Redis.Enabled() || !cfg.Session.Persistent() {
		t.Fatalf("expected redis and session vault enabled")
	}
}

func TestLoad_RejectsNonPositiveBatch(t *testing.T) {
	t.Setenv(EnvOutboxBatchSize, "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid batch size to return an error")
	}
}

func TestDBConfigDSN(t *testing.T) {
	dsn := DBConfig{Path: "app.db", BusyTimeout: 2 * time.Second}.DSN()
	if !strings.HasPrefix(dsn, "file:app.db?") || !strings.Contains(dsn, "_busy_timeout=2000") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() || devConfig.IsProd() {
		t.Fatalf("expected dev helpers for %q", devConfig.Env)
	}
	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}
