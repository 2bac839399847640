// Package cmd implements the kaiwastats CLI commands.
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/config"
	"github.com/kumalab/kaiwastats/internal/logging"
	"github.com/kumalab/kaiwastats/internal/store"
)

var (
	flagDataDir string
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "kaiwastats",
	Short: "Conversation analytics for robot assistant devices",
	Long:  "Track per-device conversation history and serve derived statistics: topics, time patterns, greetings, and interaction style.",
	RunE:  runDevices,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Data directory (default: XDG data home)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress log output")
}

// loadConfig loads the config file and applies CLI overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagDataDir != "" {
		cfg.General.DataDir = flagDataDir
	}
	return cfg, nil
}

// openStore is the shared storage opening path used by all commands.
func openStore(cfg config.Config) (*store.Store, error) {
	return store.Open(cfg.DBPath(), cfg.General.MaxHistoryPerDevice)
}

func newLogger() zerolog.Logger {
	return logging.New(os.Stderr, flagQuiet)
}
