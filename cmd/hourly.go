package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/cli"
)

var hourlyCmd = &cobra.Command{
	Use:   "hourly <device-id>",
	Short: "Conversation activity by hour of day",
	Args:  cobra.ExactArgs(1),
	RunE:  runHourly,
}

func init() {
	rootCmd.AddCommand(hourlyCmd)
}

func runHourly(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	info, err := resolveDevice(st, args[0])
	if err != nil {
		return err
	}
	stats, err := deviceStats(st, cfg, info, false)
	if err != nil {
		return err
	}
	if stats.TotalConversations == 0 {
		fmt.Println("\n  No conversations recorded for this device.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("ACTIVITY BY HOUR  %s (local time)", stats.DeviceName)))
	fmt.Println()

	// Find max for bar scaling
	maxCount := 0
	for _, n := range stats.HourlyDistribution {
		if n > maxCount {
			maxCount = n
		}
	}

	maxBarWidth := 40
	for hour := 0; hour < 24; hour++ {
		n := stats.HourlyDistribution[hour]
		barLen := 0
		if maxCount > 0 {
			barLen = n * maxBarWidth / maxCount
		}
		bar := strings.Repeat("█", barLen)
		fmt.Printf("  %s │ %6s │ %s\n", cli.FormatHour(hour), cli.FormatNumber(int64(n)), bar)
	}

	if len(stats.PeakHours) > 0 {
		peak := stats.PeakHours[0]
		fmt.Printf("\n  Peak: %s (%s conversations)\n",
			cli.FormatHour(peak), cli.FormatNumber(int64(stats.HourlyDistribution[peak])))
	}

	maxDay := 0
	for _, n := range stats.DailyDistribution {
		if n > maxDay {
			maxDay = n
		}
	}
	fmt.Println("\n  By weekday:")
	for wd := 0; wd < 7; wd++ {
		fmt.Println(cli.RenderHorizontalBar(
			cli.FormatDayOfWeek(wd),
			float64(stats.DailyDistribution[wd]),
			float64(maxDay),
			30,
		))
	}
	fmt.Println()
	return nil
}
