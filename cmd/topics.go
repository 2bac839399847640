package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/cli"
)

var flagTopicsKeywords int

var topicsCmd = &cobra.Command{
	Use:   "topics <device-id>",
	Short: "Show topic and keyword breakdown for a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopics,
}

func init() {
	topicsCmd.Flags().IntVar(&flagTopicsKeywords, "keywords", 20, "Number of keywords to show")
	rootCmd.AddCommand(topicsCmd)
}

func runTopics(_ *cobra.Command, args []string) error {
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
	if len(stats.TopicFrequencies) == 0 {
		fmt.Println("\n  No topics extracted yet for this device.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("TOPICS  %s", stats.DeviceName)))
	fmt.Println()

	topics := cli.Table{
		Title:   "TOPIC FREQUENCIES",
		Headers: []string{"Topic", "Hits"},
	}
	for _, topic := range sortedByCount(stats.TopicFrequencies) {
		topics.Rows = append(topics.Rows, []string{
			topic, cli.FormatNumber(int64(stats.TopicFrequencies[topic])),
		})
	}
	fmt.Print(cli.RenderTable(topics))

	if len(stats.KeywordCloud) > 0 {
		keywords := cli.Table{
			Title:   "KEYWORD CLOUD",
			Headers: []string{"Keyword", "Count"},
		}
		all := sortedByCount(stats.KeywordCloud)
		if flagTopicsKeywords > 0 && len(all) > flagTopicsKeywords {
			all = all[:flagTopicsKeywords]
		}
		for _, kw := range all {
			keywords.Rows = append(keywords.Rows, []string{
				kw, cli.FormatNumber(int64(stats.KeywordCloud[kw])),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(keywords))
	}

	if len(stats.TimePeriodTopics) > 0 {
		periods := cli.Table{
			Title:   "BY TIME OF DAY",
			Headers: []string{"Period", "Topics"},
		}
		for _, period := range []string{"morning", "afternoon", "evening", "night"} {
			if topics, ok := stats.TimePeriodTopics[period]; ok {
				periods.Rows = append(periods.Rows, []string{period, cli.FormatList(topics, 3)})
			}
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(periods))
	}

	if len(stats.LocationTopics) > 0 {
		locations := cli.Table{
			Title:   "BY LOCATION",
			Headers: []string{"Location", "Topics"},
		}
		names := make([]string, 0, len(stats.LocationTopics))
		for name := range stats.LocationTopics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			locations.Rows = append(locations.Rows, []string{name, cli.FormatList(stats.LocationTopics[name], 3)})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(locations))
	}

	fmt.Println()
	return nil
}

// sortedByCount orders keys by count descending, ties alphabetical.
func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
