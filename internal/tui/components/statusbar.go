package components

import (
	"fmt"

	"github.com/kumalab/kaiwastats/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, dataAge string, devices int, refreshing, autoRefresh bool) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Width(width)

	left := " [?]help  [r]efresh  [q]uit"

	right := ""
	if refreshing {
		right += "refreshing… "
	} else if autoRefresh {
		right += "auto-refresh on "
	}
	if devices > 0 {
		right += fmt.Sprintf("%d device(s) ", devices)
	}
	if dataAge != "" {
		right += fmt.Sprintf("│ loaded in %s ", dataAge)
	}

	// Pad middle
	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}

	bar := left
	for i := 0; i < padding; i++ {
		bar += " "
	}
	bar += right

	return style.Render(bar)
}
