package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/cli"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List registered devices",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	devices, err := st.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("\n  No devices registered yet. Start the daemon with `kaiwastats serve` and ingest turns.")
		return nil
	}

	table := cli.Table{
		Title:   "DEVICES",
		Headers: []string{"Device", "Location", "Turns", "Connections", "Last seen"},
	}
	for _, d := range devices {
		count, err := st.TurnCount(d.DeviceID)
		if err != nil {
			return err
		}
		location := d.Location
		if location == "" {
			location = "-"
		}
		table.Rows = append(table.Rows, []string{
			d.Name,
			location,
			cli.FormatNumber(int64(count)),
			cli.FormatNumber(int64(d.TotalConnections)),
			d.LastSeen.Local().Format(time.RFC3339),
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(table))
	fmt.Println()
	return nil
}
