package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kumalab/kaiwastats/internal/config"
	"github.com/kumalab/kaiwastats/internal/tui/components"
	"github.com/kumalab/kaiwastats/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	settingsFieldTheme = iota
	settingsFieldDebounce
	settingsFieldSweep
	settingsFieldMaxHistory
	settingsFieldCount // sentinel
)

// settingsState tracks the settings tab state.
type settingsState struct {
	cursor  int
	editing bool
	input   textinput.Model
	saved   bool  // flash "saved" message
	saveErr error // non-nil if last save failed
}

func newSettingsInput() textinput.Model {
	ti := textinput.New()
	ti.CharLimit = 64
	ti.Width = 40
	return ti
}

func (a App) settingsStartEdit() (tea.Model, tea.Cmd) {
	a.settings.editing = true
	a.settings.saved = false

	ti := newSettingsInput()

	switch a.settings.cursor {
	case settingsFieldTheme:
		names := make([]string, len(theme.All))
		for i, th := range theme.All {
			names[i] = th.Name
		}
		ti.Placeholder = strings.Join(names, ", ")
		ti.SetValue(a.cfg.Appearance.Theme)
	case settingsFieldDebounce:
		ti.Placeholder = "30 (minutes)"
		ti.SetValue(strconv.Itoa(a.cfg.Scheduler.DebounceMinutes))
	case settingsFieldSweep:
		ti.Placeholder = "60 (minutes)"
		ti.SetValue(strconv.Itoa(a.cfg.Scheduler.SweepMinutes))
	case settingsFieldMaxHistory:
		ti.Placeholder = "1000 (turns per device)"
		ti.SetValue(strconv.Itoa(a.cfg.General.MaxHistoryPerDevice))
	}

	ti.Focus()
	a.settings.input = ti
	return a, ti.Cursor.BlinkCmd()
}

func (a App) updateSettingsInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.settingsSave()
		a.settings.editing = false
		a.settings.saved = a.settings.saveErr == nil
		return a, nil
	case "esc":
		a.settings.editing = false
		return a, nil
	}

	var cmd tea.Cmd
	a.settings.input, cmd = a.settings.input.Update(msg)
	return a, cmd
}

func (a *App) settingsSave() {
	val := strings.TrimSpace(a.settings.input.Value())
	a.settings.saveErr = nil

	switch a.settings.cursor {
	case settingsFieldTheme:
		found := false
		for _, th := range theme.All {
			if th.Name == val {
				found = true
				break
			}
		}
		if !found {
			a.settings.saveErr = fmt.Errorf("unknown theme %q", val)
			return
		}
		a.cfg.Appearance.Theme = val
		theme.SetActive(val)
	case settingsFieldDebounce:
		mins, err := strconv.Atoi(val)
		if err != nil || mins <= 0 {
			a.settings.saveErr = fmt.Errorf("debounce must be a positive number of minutes")
			return
		}
		a.cfg.Scheduler.DebounceMinutes = mins
	case settingsFieldSweep:
		mins, err := strconv.Atoi(val)
		if err != nil || mins <= 0 {
			a.settings.saveErr = fmt.Errorf("sweep interval must be a positive number of minutes")
			return
		}
		a.cfg.Scheduler.SweepMinutes = mins
	case settingsFieldMaxHistory:
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			a.settings.saveErr = fmt.Errorf("history cap must be a positive number of turns")
			return
		}
		a.cfg.General.MaxHistoryPerDevice = n
	}

	a.settings.saveErr = config.Save(a.cfg)
}

func (a App) renderSettingsTab(cw int) string {
	t := theme.Active
	ss := a.settings

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	cursorStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	okStyle := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
	errStyle := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface)

	fields := []struct {
		label string
		value string
	}{
		{"Theme", a.cfg.Appearance.Theme},
		{"Recompute debounce", fmt.Sprintf("%d min", a.cfg.Scheduler.DebounceMinutes)},
		{"Sweep interval", fmt.Sprintf("%d min", a.cfg.Scheduler.SweepMinutes)},
		{"History per device", fmt.Sprintf("%d turns", a.cfg.General.MaxHistoryPerDevice)},
	}

	var b strings.Builder
	for i, f := range fields {
		marker := "  "
		if i == ss.cursor {
			marker = cursorStyle.Render("▸ ")
		}
		if i == ss.cursor && ss.editing {
			fmt.Fprintf(&b, "%s%s %s\n", marker,
				labelStyle.Render(padDisplayWidth(f.label, 20)),
				ss.input.View())
		} else {
			fmt.Fprintf(&b, "%s%s %s\n", marker,
				labelStyle.Render(padDisplayWidth(f.label, 20)),
				valueStyle.Render(f.value))
		}
	}

	b.WriteString("\n")
	switch {
	case ss.saveErr != nil:
		b.WriteString(errStyle.Render(ss.saveErr.Error()))
	case ss.saved:
		b.WriteString(okStyle.Render("Saved to " + config.ConfigPath()))
	default:
		b.WriteString(dimStyle.Render("j/k move · Enter edit · Esc cancel"))
	}
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Daemon settings take effect on the next `kaiwastats serve` start."))

	return components.ContentCard("Settings", b.String(), cw)
}
