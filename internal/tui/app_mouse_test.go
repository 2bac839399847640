package tui

import (
	"testing"

	"github.com/kumalab/kaiwastats/internal/tui/components"
)

func TestTabAtXMatchesTabWidths(t *testing.T) {
	for active := 0; active < len(components.Tabs); active++ {
		a := App{activeTab: active}
		pos := 0

		for i, tab := range components.Tabs {
			w := components.TabVisualWidth(tab, i == active)
			x := pos + w/2 // midpoint inside this tab
			if got := a.tabAtX(x); got != i {
				t.Fatalf("active=%d x=%d -> tab=%d, want %d", active, x, got, i)
			}
			pos += w
			if i < len(components.Tabs)-1 {
				pos++ // separator
			}
		}

		// Past the last tab there is no hitbox.
		if got := a.tabAtX(pos + 5); got != -1 {
			t.Fatalf("active=%d x=%d -> tab=%d, want -1", active, pos+5, got)
		}
	}
}
