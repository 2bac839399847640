package components

import (
	"strings"
	"testing"

	"github.com/kumalab/kaiwastats/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	// Force TrueColor output so ANSI codes are generated in tests
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func TestCardRowEqualizesHeights(t *testing.T) {
	theme.SetActive("flexoki-dark")

	shortCard := ContentCard("Short", "Content", 22)
	tallCard := ContentCard("Tall", "Line 1\nLine 2\nLine 3\nLine 4\nLine 5", 22)

	shortLines := len(strings.Split(shortCard, "\n"))
	tallLines := len(strings.Split(tallCard, "\n"))
	if shortLines >= tallLines {
		t.Fatal("test setup error: short card should be shorter than tall card")
	}

	joined := CardRow([]string{tallCard, shortCard})
	lines := strings.Split(joined, "\n")
	if len(lines) != tallLines {
		t.Errorf("joined height should match tallest card: got %d, want %d", len(lines), tallLines)
	}

	// Padding below the short card must still carry background styling,
	// otherwise it renders as unstyled black cells.
	for i := shortLines; i < len(lines); i++ {
		if !strings.Contains(lines[i], "\x1b[") {
			t.Errorf("padding line %d has no ANSI codes", i)
		}
	}
}

func TestLayoutRowSumsToTotal(t *testing.T) {
	for _, tc := range []struct {
		total, n int
	}{
		{100, 2},
		{101, 2},
		{97, 3},
		{40, 1},
	} {
		widths := LayoutRow(tc.total, tc.n)
		if len(widths) != tc.n {
			t.Fatalf("LayoutRow(%d, %d) returned %d widths", tc.total, tc.n, len(widths))
		}
		sum := 0
		for _, w := range widths {
			sum += w
		}
		if sum != tc.total {
			t.Errorf("LayoutRow(%d, %d) widths sum to %d", tc.total, tc.n, sum)
		}
	}
}

func TestTabVisualWidthMatchesRender(t *testing.T) {
	theme.SetActive("flexoki-dark")

	for i, tab := range Tabs {
		for _, active := range []bool{true, false} {
			got := lipgloss.Width(renderTab(tab, active))
			want := TabVisualWidth(tab, active)
			if got != want {
				t.Errorf("tab %d active=%v: rendered width %d, TabVisualWidth %d", i, active, got, want)
			}
		}
	}
}
