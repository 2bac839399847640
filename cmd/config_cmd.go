package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Data directory:   %s\n", cfg.DataDir())
	fmt.Printf("    History cap:      %d turns per device\n", cfg.General.MaxHistoryPerDevice)
	fmt.Println()

	fmt.Println("  [Analysis]")
	fmt.Printf("    Keyword cloud:    %d keywords\n", cfg.Analysis.KeywordCloudCap)
	fmt.Printf("    Compute timeout:  %s\n", cfg.ComputeTimeout())
	fmt.Println()

	fmt.Println("  [Scheduler]")
	fmt.Printf("    Debounce:          %s\n", cfg.Debounce())
	fmt.Printf("    Sweep interval:    %s\n", cfg.SweepInterval())
	fmt.Printf("    Sweep concurrency: %d\n", cfg.Scheduler.SweepConcurrency)
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address:       %s\n", cfg.Server.Addr)
	fmt.Printf("    Events buffer: %d\n", cfg.Server.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `kaiwastats setup` to reconfigure.")
	return nil
}
