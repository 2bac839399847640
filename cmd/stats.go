package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/analyzer"
	"github.com/kumalab/kaiwastats/internal/cli"
	"github.com/kumalab/kaiwastats/internal/config"
	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/store"
)

var flagStatsRecompute bool

var statsCmd = &cobra.Command{
	Use:   "stats <device-id>",
	Short: "Show conversation statistics for a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsRecompute, "recompute", false, "Recompute from the turn history instead of using the saved bundle")
	rootCmd.AddCommand(statsCmd)
}

// resolveDevice accepts either a device ID or a device name.
func resolveDevice(st *store.Store, arg string) (model.DeviceInfo, error) {
	info, err := st.Device(arg)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.DeviceInfo{}, err
	}

	devices, err := st.Devices()
	if err != nil {
		return model.DeviceInfo{}, err
	}
	for _, d := range devices {
		if d.Name == arg {
			return d, nil
		}
	}
	return model.DeviceInfo{}, fmt.Errorf("device %q: %w", arg, store.ErrNotFound)
}

// deviceStats returns the bundle to report: the persisted one, or a fresh
// computation when asked for or when nothing is persisted yet.
func deviceStats(st *store.Store, cfg config.Config, info model.DeviceInfo, recompute bool) (model.DeviceStats, error) {
	if !recompute {
		stats, err := st.LoadStats(info.DeviceID)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return model.DeviceStats{}, err
		}
	}

	turns, err := st.Turns(info.DeviceID)
	if err != nil {
		return model.DeviceStats{}, err
	}
	an := analyzer.New(nil, cfg.Analysis.KeywordCloudCap, newLogger())
	stats := an.Compute(info, turns)
	if err := st.SaveStats(stats); err != nil {
		return model.DeviceStats{}, err
	}
	return stats, nil
}

func runStats(_ *cobra.Command, args []string) error {
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
	stats, err := deviceStats(st, cfg, info, flagStatsRecompute)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("STATS  %s", stats.DeviceName)))
	fmt.Println()

	overview := cli.Table{
		Title: "OVERVIEW",
		Rows: [][]string{
			{"Total conversations", cli.FormatNumber(int64(stats.TotalConversations))},
			{"Per day", fmt.Sprintf("%.1f", stats.AverageConversationsPerDay)},
			{"Avg message length", fmt.Sprintf("%.1f chars", stats.AverageMessageLength)},
			{"Vocabulary", cli.FormatNumber(int64(stats.VocabularySize))},
			{"Interaction style", orDash(stats.InteractionStyle)},
			{"Favorite topics", cli.FormatList(stats.FavoriteTopics, 5)},
			{"Common greetings", cli.FormatList(stats.CommonGreetings, 5)},
			{"Peak hours", formatPeakHours(stats.PeakHours)},
			{"Computed at", stats.ComputedAt.Local().Format(time.RFC3339)},
		},
	}
	fmt.Print(cli.RenderTable(overview))

	if len(stats.SentimentDistribution) > 0 {
		sentiment := cli.Table{
			Title:   "SENTIMENT",
			Headers: []string{"Tone", "Share"},
		}
		for _, tone := range []string{model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative} {
			sentiment.Rows = append(sentiment.Rows, []string{
				tone, cli.FormatPercent(stats.SentimentDistribution[tone]),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(sentiment))
	}

	if len(stats.QuestionTypeCounts) > 0 {
		questions := cli.Table{
			Title:   "QUESTIONS",
			Headers: []string{"Type", "Count"},
		}
		types := make([]string, 0, len(stats.QuestionTypeCounts))
		for qt := range stats.QuestionTypeCounts {
			types = append(types, qt)
		}
		sort.Slice(types, func(i, j int) bool {
			if stats.QuestionTypeCounts[types[i]] != stats.QuestionTypeCounts[types[j]] {
				return stats.QuestionTypeCounts[types[i]] > stats.QuestionTypeCounts[types[j]]
			}
			return types[i] < types[j]
		})
		for _, qt := range types {
			questions.Rows = append(questions.Rows, []string{
				qt, cli.FormatNumber(int64(stats.QuestionTypeCounts[qt])),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(questions))
	}

	fmt.Println()
	return nil
}

func formatPeakHours(hours []int) string {
	if len(hours) == 0 {
		return "-"
	}
	labels := make([]string, len(hours))
	for i, h := range hours {
		labels[i] = cli.FormatHour(h)
	}
	return cli.FormatList(labels, 0)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
