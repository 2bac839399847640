package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/model"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh <device-id>",
	Short: "Force the daemon to recompute a device's statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&flagServeAddr, "addr", "", "Daemon HTTP address (default from config)")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, _, addr := servePaths(cfg)

	url := fmt.Sprintf("http://%s/v1/devices/%s/refresh", addr, args[0])
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s (start it with `kaiwastats serve`): %w", addr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("unknown device %q", args[0])
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("refresh failed: HTTP %d: %s", resp.StatusCode, body)
	}

	var stats model.DeviceStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("malformed daemon response: %w", err)
	}

	fmt.Printf("  Recomputed stats for %s\n", stats.DeviceName)
	fmt.Printf("  Turns analyzed: %d\n", stats.SourceTurnCount)
	fmt.Printf("  Computed at: %s\n", stats.ComputedAt.Local().Format(time.RFC3339))
	return nil
}
