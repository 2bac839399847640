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

func (a App) renderPatternsTab(cw int) string {
	d, ok := a.selected()
	if !ok {
		return ""
	}
	stats := d.Stats

	t := theme.Active
	var b strings.Builder

	// Row 1: Hourly distribution chart
	hourVals := make([]float64, 24)
	for h, n := range stats.HourlyDistribution {
		if h >= 0 && h < 24 {
			hourVals[h] = float64(n)
		}
	}
	chartH := 10
	if a.isCompactLayout() {
		chartH = 7
	}
	innerW := components.CardInnerWidth(cw)
	b.WriteString(components.ContentCard(
		"Conversations by Hour",
		components.BarChart(hourVals, hourLabels24(), t.Blue, innerW, chartH),
		cw,
	))
	b.WriteString("\n")

	// Row 2: Weekdays + summary
	halves := components.LayoutRow(cw, 2)

	weekdayCard := components.ContentCard(
		"By Weekday",
		renderWeekdays(stats.DailyDistribution, components.CardInnerWidth(halves[0])),
		halves[0],
	)
	summaryCard := components.ContentCard(
		"Rhythm",
		renderRhythm(stats),
		halves[1],
	)

	if a.isCompactLayout() {
		b.WriteString(weekdayCard)
		b.WriteString("\n")
		b.WriteString(summaryCard)
		b.WriteString("\n")
	} else {
		b.WriteString(components.CardRow([]string{weekdayCard, summaryCard}))
		b.WriteString("\n")
	}

	return b.String()
}

func hourLabels24() []string {
	labels := make([]string, 24)
	for h := 0; h < 24; h++ {
		if h%3 == 0 {
			labels[h] = fmt.Sprintf("%02d", h)
		}
	}
	return labels
}

func renderWeekdays(daily map[int]int, innerW int) string {
	t := theme.Active
	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
	numStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	maxCount := 0
	for _, n := range daily {
		if n > maxCount {
			maxCount = n
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	barMaxLen := innerW - 16
	if barMaxLen < 1 {
		barMaxLen = 1
	}

	var b strings.Builder
	for wd := 0; wd < 7; wd++ {
		n := daily[wd]
		barLen := n * barMaxLen / maxCount
		fmt.Fprintf(&b, "%s %s %s\n",
			nameStyle.Render(fmt.Sprintf("%-4s", cli.FormatDayOfWeek(wd))),
			barStyle.Render(strings.Repeat("█", barLen)),
			numStyle.Render(cli.FormatNumber(int64(n))))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRhythm(stats model.DeviceStats) string {
	t := theme.Active
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	row := func(label, val string) string {
		return labelStyle.Render(padDisplayWidth(label, 16)) + valStyle.Render(val)
	}

	peak := "–"
	if len(stats.PeakHours) > 0 {
		hours := make([]string, len(stats.PeakHours))
		for i, h := range stats.PeakHours {
			hours[i] = cli.FormatHour(h)
		}
		peak = strings.Join(hours, ", ")
	}

	lastSeen := "–"
	if !stats.LastSeen.IsZero() {
		lastSeen = stats.LastSeen.Format("2006-01-02 15:04")
	}

	lines := []string{
		row("Peak hours", peak),
		row("Avg msg length", fmt.Sprintf("%.1f chars", stats.AverageMessageLength)),
		row("Last seen", lastSeen),
		row("Stats computed", stats.ComputedAt.Format("2006-01-02 15:04")),
	}
	return strings.Join(lines, "\n")
}
