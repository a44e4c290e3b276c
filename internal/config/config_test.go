package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tradelayout/strategy-engine/internal/config"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.Mode != "backtest" {
		t.Fatalf("expected default scheduler mode backtest, got %q", cfg.Scheduler.Mode)
	}
	if cfg.Session.IdleTTL != 60*time.Minute {
		t.Fatalf("expected default idle ttl 60m, got %s", cfg.Session.IdleTTL)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "server:\n  port: 9000\nscheduler:\n  mode: live\n  speed_multiplier: 5\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected server port 9000 from file, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.Mode != "live" || cfg.Scheduler.SpeedMultiplier != 5 {
		t.Fatalf("expected scheduler overrides applied, got %+v", cfg.Scheduler)
	}
	if cfg.Metrics.Enabled != true {
		t.Fatalf("expected untouched metrics default to survive, got %+v", cfg.Metrics)
	}
}
