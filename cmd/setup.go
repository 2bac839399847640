package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	reader := bufio.NewReader(os.Stdin)

	// Load existing config or defaults
	cfg, _ := config.Load()

	fmt.Println()
	fmt.Println("  Welcome to kaiwastats!")
	fmt.Println()

	// 1. Data directory
	fmt.Println("  1. Data directory")
	fmt.Printf("     Current: %s\n", cfg.DataDir())
	fmt.Print("     > ")
	dataDir, _ := reader.ReadString('\n')
	dataDir = strings.TrimSpace(dataDir)
	if dataDir != "" {
		cfg.General.DataDir = dataDir
	}
	fmt.Println()

	// 2. History cap
	fmt.Println("  2. Retained turns per device")
	fmt.Printf("     Current: %d (0 keeps everything)\n", cfg.General.MaxHistoryPerDevice)
	fmt.Print("     > ")
	capStr, _ := reader.ReadString('\n')
	capStr = strings.TrimSpace(capStr)
	if capStr != "" {
		if n, err := strconv.Atoi(capStr); err == nil && n >= 0 {
			cfg.General.MaxHistoryPerDevice = n
		}
	}
	fmt.Println()

	// 3. Debounce window
	fmt.Println("  3. Recompute debounce")
	fmt.Println("     (1) 10 minutes")
	fmt.Println("     (2) 30 minutes [default]")
	fmt.Println("     (3) 60 minutes")
	fmt.Print("     > ")
	choice, _ := reader.ReadString('\n')
	switch strings.TrimSpace(choice) {
	case "1":
		cfg.Scheduler.DebounceMinutes = 10
	case "3":
		cfg.Scheduler.DebounceMinutes = 60
	default:
		cfg.Scheduler.DebounceMinutes = 30
	}
	fmt.Println()

	// 4. Theme
	fmt.Println("  4. Color theme")
	fmt.Println("     (1) Flexoki Dark [default]")
	fmt.Println("     (2) Catppuccin Mocha")
	fmt.Println("     (3) Tokyo Night")
	fmt.Println("     (4) Terminal (ANSI 16)")
	fmt.Print("     > ")
	themeChoice, _ := reader.ReadString('\n')
	switch strings.TrimSpace(themeChoice) {
	case "2":
		cfg.Appearance.Theme = "catppuccin-mocha"
	case "3":
		cfg.Appearance.Theme = "tokyo-night"
	case "4":
		cfg.Appearance.Theme = "terminal"
	default:
		cfg.Appearance.Theme = "flexoki-dark"
	}

	// Save
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `kaiwastats setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}
