package components

import (
	"strings"

	"github.com/kumalab/kaiwastats/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // position of the shortcut letter in the name (-1 if not in name)
}

// Tabs defines all available tabs.
var Tabs = []Tab{
	{Name: "Overview", Key: 'o', KeyPos: 0},
	{Name: "Topics", Key: 't', KeyPos: 0},
	{Name: "Patterns", Key: 'p', KeyPos: 0},
	{Name: "Settings", Key: 'x', KeyPos: -1}, // x is not in "Settings"
}

func renderTab(tab Tab, active bool) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	dimKeyStyle := lipgloss.NewStyle().
		Foreground(t.TextDim)

	if active {
		return activeStyle.Render(" " + tab.Name + " ")
	}

	if tab.KeyPos >= 0 && tab.KeyPos < len(tab.Name) {
		before := tab.Name[:tab.KeyPos]
		key := string(tab.Name[tab.KeyPos])
		after := tab.Name[tab.KeyPos+1:]
		return inactiveStyle.Render(" "+before) +
			dimKeyStyle.Render("[") + keyStyle.Render(key) + dimKeyStyle.Render("]") +
			inactiveStyle.Render(after+" ")
	}

	// Key not in name (e.g. "Settings" with 'x')
	return inactiveStyle.Render(" "+tab.Name) +
		dimKeyStyle.Render("[") + keyStyle.Render(string(tab.Key)) + dimKeyStyle.Render("] ")
}

// TabVisualWidth returns the rendered width of a tab. Mouse hitboxes in the
// app must agree with RenderTabBar, so both go through this.
func TabVisualWidth(tab Tab, active bool) int {
	w := len(tab.Name) + 2 // one space of padding each side
	if !active && (tab.KeyPos < 0 || tab.KeyPos >= len(tab.Name)) {
		w += 3 // "[x]" suffix
	} else if !active {
		w += 2 // "[" and "]" around the shortcut letter
	}
	return w
}

// RenderTabBar renders the tab bar with the given active index.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	sepStyle := lipgloss.NewStyle().Foreground(t.Border)

	var b strings.Builder
	for i, tab := range Tabs {
		b.WriteString(renderTab(tab, i == activeIdx))
		if i < len(Tabs)-1 {
			b.WriteString(sepStyle.Render("│"))
		}
	}

	line := b.String()
	pad := width - lipgloss.Width(line)
	if pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return line
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
