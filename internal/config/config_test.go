package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.DebounceMinutes != 30 {
		t.Errorf("DebounceMinutes = %d, want 30", cfg.Scheduler.DebounceMinutes)
	}
	if cfg.Server.Addr != "127.0.0.1:8099" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Scheduler.DebounceMinutes = 5
	cfg.General.MaxHistoryPerDevice = 50
	cfg.Appearance.Theme = "flexoki-light"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists() {
		t.Fatal("config file should exist after Save")
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Scheduler.DebounceMinutes != 5 {
		t.Errorf("DebounceMinutes = %d, want 5", loaded.Scheduler.DebounceMinutes)
	}
	if loaded.General.MaxHistoryPerDevice != 50 {
		t.Errorf("MaxHistoryPerDevice = %d, want 50", loaded.General.MaxHistoryPerDevice)
	}
	if loaded.Appearance.Theme != "flexoki-light" {
		t.Errorf("Theme = %q", loaded.Appearance.Theme)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfgDir := filepath.Join(dir, "kaiwastats")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	partial := "[scheduler]\ndebounce_minutes = 10\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(partial), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.DebounceMinutes != 10 {
		t.Errorf("DebounceMinutes = %d, want 10", cfg.Scheduler.DebounceMinutes)
	}
	// Untouched sections keep defaults.
	if cfg.Analysis.KeywordCloudCap != 200 {
		t.Errorf("KeywordCloudCap = %d, want default 200", cfg.Analysis.KeywordCloudCap)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Debounce().Minutes() != 30 {
		t.Errorf("Debounce = %v", cfg.Debounce())
	}
	if cfg.SweepInterval().Minutes() != 60 {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval())
	}
	if cfg.ComputeTimeout().Seconds() != 30 {
		t.Errorf("ComputeTimeout = %v", cfg.ComputeTimeout())
	}
}
