// Package config loads and saves the kaiwastats TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all kaiwastats configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Analysis   AnalysisConfig   `toml:"analysis"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Server     ServerConfig     `toml:"server"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	// DataDir overrides the default data directory.
	DataDir string `toml:"data_dir,omitempty"`

	// MaxHistoryPerDevice caps retained turns per device; 0 keeps all.
	MaxHistoryPerDevice int `toml:"max_history_per_device"`
}

// AnalysisConfig tunes the stats computation.
type AnalysisConfig struct {
	KeywordCloudCap    int `toml:"keyword_cloud_cap"`
	ComputeTimeoutSecs int `toml:"compute_timeout_secs"`
}

// SchedulerConfig tunes the update coordinator.
type SchedulerConfig struct {
	DebounceMinutes  int `toml:"debounce_minutes"`
	SweepMinutes     int `toml:"sweep_minutes"`
	SweepConcurrency int `toml:"sweep_concurrency"`
}

// ServerConfig holds the serve daemon settings.
type ServerConfig struct {
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			MaxHistoryPerDevice: 1000,
		},
		Analysis: AnalysisConfig{
			KeywordCloudCap:    200,
			ComputeTimeoutSecs: 30,
		},
		Scheduler: SchedulerConfig{
			DebounceMinutes:  30,
			SweepMinutes:     60,
			SweepConcurrency: 4,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8099",
			EventsBuffer: 256,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Debounce returns the scheduler debounce as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Scheduler.DebounceMinutes) * time.Minute
}

// SweepInterval returns the periodic sweep interval as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Scheduler.SweepMinutes) * time.Minute
}

// ComputeTimeout returns the per-computation timeout as a duration.
func (c Config) ComputeTimeout() time.Duration {
	return time.Duration(c.Analysis.ComputeTimeoutSecs) * time.Second
}

// DataDir returns the configured data directory, defaulting to the
// XDG data home.
func (c Config) DataDir() string {
	if c.General.DataDir != "" {
		return c.General.DataDir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "kaiwastats")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "kaiwastats")
}

// DBPath returns the path of the SQLite database.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir(), "kaiwastats.db")
}

// PIDPath returns the path of the serve daemon's PID file.
func (c Config) PIDPath() string {
	return filepath.Join(c.DataDir(), "serve.pid")
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kaiwastats")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "kaiwastats")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
