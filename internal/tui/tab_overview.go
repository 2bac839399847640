package tui

import (
	"fmt"
	"strings"

	"github.com/kumalab/kaiwastats/internal/cli"
	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/tui/components"
	"github.com/kumalab/kaiwastats/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderOverviewTab(cw int) string {
	d, ok := a.selected()
	if !ok {
		return ""
	}
	stats := d.Stats

	var b strings.Builder

	// Row 1: Metric cards
	firstSeen := "–"
	if !stats.FirstSeen.IsZero() {
		firstSeen = "since " + stats.FirstSeen.Format("2006-01-02")
	}
	style := stats.InteractionStyle
	if style == "" {
		style = "–"
	}

	cards := []struct{ Label, Value, Delta string }{
		{"Conversations", cli.FormatNumber(int64(stats.TotalConversations)), firstSeen},
		{"Per Day", fmt.Sprintf("%.1f", stats.AverageConversationsPerDay), "average"},
		{"Vocabulary", cli.FormatNumber(int64(stats.VocabularySize)), "unique words"},
		{"Style", style, "interaction"},
	}
	b.WriteString(components.MetricCardRow(cards, cw))
	b.WriteString("\n")

	// Row 2: Favorite topics
	if len(stats.FavoriteTopics) > 0 {
		innerW := components.CardInnerWidth(cw)
		b.WriteString(components.ContentCard(
			"Favorite Topics",
			renderCountBars(stats.FavoriteTopics, stats.TopicFrequencies, innerW),
			cw,
		))
		b.WriteString("\n")
	}

	// Row 3: Sentiment + Questions
	halves := components.LayoutRow(cw, 2)

	sentimentCard := components.ContentCard(
		"Sentiment",
		renderSentiment(stats.SentimentDistribution, components.CardInnerWidth(halves[0])),
		halves[0],
	)

	questionCard := components.ContentCard(
		"Questions",
		renderQuestions(stats.QuestionTypeCounts, components.CardInnerWidth(halves[1])),
		halves[1],
	)

	if a.isCompactLayout() {
		b.WriteString(sentimentCard)
		b.WriteString("\n")
		b.WriteString(questionCard)
		b.WriteString("\n")
	} else {
		b.WriteString(components.CardRow([]string{sentimentCard, questionCard}))
		b.WriteString("\n")
	}

	// Row 4: Greetings
	if len(stats.CommonGreetings) > 0 {
		t := theme.Active
		valStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
		b.WriteString(components.ContentCard(
			"Common Greetings",
			valStyle.Render(cli.FormatList(stats.CommonGreetings, 5)),
			cw,
		))
		b.WriteString("\n")
	}

	return b.String()
}

// renderCountBars renders one labeled bar per item, scaled to the largest count.
func renderCountBars(order []string, counts map[string]int, innerW int) string {
	t := theme.Active

	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	numStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	maxCount := 0
	for _, name := range order {
		if counts[name] > maxCount {
			maxCount = counts[name]
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	nameW := innerW / 3
	if nameW < 8 {
		nameW = 8
	}
	barMaxLen := innerW - nameW - 8
	if barMaxLen < 1 {
		barMaxLen = 1
	}

	var b strings.Builder
	for _, name := range order {
		n := counts[name]
		barLen := n * barMaxLen / maxCount
		fmt.Fprintf(&b, "%s %s %s\n",
			nameStyle.Render(padDisplayWidth(truncStr(name, nameW), nameW)),
			barStyle.Render(strings.Repeat("█", barLen)),
			numStyle.Render(cli.FormatNumber(int64(n))))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSentiment(dist map[string]float64, innerW int) string {
	labelW := 8
	barW := innerW - labelW - 8
	if barW < 10 {
		barW = 10
	}

	var b strings.Builder
	for _, label := range []string{model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative} {
		b.WriteString(components.ShareBar(label, dist[label], components.SentimentColor(label), labelW, barW))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var questionOrder = []string{
	model.QuestionWhat,
	model.QuestionWhen,
	model.QuestionWhere,
	model.QuestionWho,
	model.QuestionWhy,
	model.QuestionHow,
	model.QuestionGeneral,
}

func renderQuestions(counts map[string]int, innerW int) string {
	t := theme.Active
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	present := make([]string, 0, len(questionOrder))
	for _, q := range questionOrder {
		if counts[q] > 0 {
			present = append(present, q)
		}
	}
	if len(present) == 0 {
		return dim.Render("no questions yet")
	}
	return renderCountBars(present, counts, innerW)
}

// padDisplayWidth right-pads s with spaces to the given display width.
// fmt's %-*s counts bytes, which misaligns multibyte Japanese labels.
func padDisplayWidth(s string, w int) string {
	gap := w - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}
