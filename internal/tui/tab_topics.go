package tui

import (
	"sort"
	"strings"

	"github.com/kumalab/kaiwastats/internal/cli"
	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/tui/components"
	"github.com/kumalab/kaiwastats/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

const keywordCloudLimit = 24

func (a App) renderTopicsTab(cw int) string {
	d, ok := a.selected()
	if !ok {
		return ""
	}
	stats := d.Stats

	t := theme.Active
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder

	// Row 1: All topics by frequency
	topics := sortedByCountDesc(stats.TopicFrequencies)
	innerW := components.CardInnerWidth(cw)
	topicBody := dim.Render("no topics detected yet")
	if len(topics) > 0 {
		topicBody = renderCountBars(topics, stats.TopicFrequencies, innerW)
	}
	b.WriteString(components.ContentCard("Topic Frequencies", topicBody, cw))
	b.WriteString("\n")

	// Row 2: Keyword cloud
	keywords := sortedByCountDesc(stats.KeywordCloud)
	if len(keywords) > keywordCloudLimit {
		keywords = keywords[:keywordCloudLimit]
	}
	cloudBody := dim.Render("no keywords yet")
	if len(keywords) > 0 {
		cloudBody = renderKeywordCloud(keywords, stats.KeywordCloud, innerW)
	}
	b.WriteString(components.ContentCard("Keyword Cloud", cloudBody, cw))
	b.WriteString("\n")

	// Row 3: Context-dependent topics
	halves := components.LayoutRow(cw, 2)

	periodCard := components.ContentCard(
		"By Time of Day",
		renderTopicGroups(periodOrder, stats.TimePeriodTopics, dim),
		halves[0],
	)
	locationCard := components.ContentCard(
		"By Location",
		renderTopicGroups(sortedKeys(stats.LocationTopics), stats.LocationTopics, dim),
		halves[1],
	)

	if a.isCompactLayout() {
		b.WriteString(periodCard)
		b.WriteString("\n")
		b.WriteString(locationCard)
		b.WriteString("\n")
	} else {
		b.WriteString(components.CardRow([]string{periodCard, locationCard}))
		b.WriteString("\n")
	}

	return b.String()
}

var periodOrder = []string{
	model.PeriodMorning,
	model.PeriodAfternoon,
	model.PeriodEvening,
	model.PeriodNight,
}

// renderKeywordCloud lays keywords out as wrapped "word·count" pills.
func renderKeywordCloud(order []string, counts map[string]int, innerW int) string {
	t := theme.Active
	wordStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	hotStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	numStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	maxCount := 0
	for _, w := range order {
		if counts[w] > maxCount {
			maxCount = counts[w]
		}
	}

	var b strings.Builder
	lineW := 0
	for _, w := range order {
		pill := w + "·" + cli.FormatNumber(int64(counts[w]))
		pillW := lipgloss.Width(pill) + 2
		if lineW > 0 && lineW+pillW > innerW {
			b.WriteString("\n")
			lineW = 0
		}

		style := wordStyle
		if maxCount > 0 && counts[w] == maxCount {
			style = hotStyle
		}
		b.WriteString(style.Render(w))
		b.WriteString(numStyle.Render("·" + cli.FormatNumber(int64(counts[w])) + "  "))
		lineW += pillW
	}
	return b.String()
}

// renderTopicGroups renders "label: topic, topic, topic" lines for grouped topics.
func renderTopicGroups(order []string, groups map[string][]string, dim lipgloss.Style) string {
	t := theme.Active
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var lines []string
	for _, key := range order {
		topics := groups[key]
		if len(topics) == 0 {
			continue
		}
		lines = append(lines, labelStyle.Render(padDisplayWidth(key, 10))+valStyle.Render(cli.FormatList(topics, 3)))
	}
	if len(lines) == 0 {
		return dim.Render("not enough data")
	}
	return strings.Join(lines, "\n")
}

// sortedByCountDesc returns keys sorted by count descending, ties alphabetical.
func sortedByCountDesc(counts map[string]int) []string {
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

func sortedKeys(groups map[string][]string) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
