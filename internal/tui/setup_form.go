package tui

import (
	"fmt"
	"strconv"

	"github.com/kumalab/kaiwastats/internal/config"
	"github.com/kumalab/kaiwastats/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// setupValues holds the first-run form answers.
type setupValues struct {
	Theme    string
	Debounce string // minutes, as the select option value
}

// newSetupForm builds the first-run setup form shown on top of the dashboard.
func newSetupForm(deviceCount int, vals *setupValues) *huh.Form {
	vals.Theme = "flexoki-dark"
	vals.Debounce = "30"

	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, th := range theme.All {
		themeOpts = append(themeOpts, huh.NewOption(th.Name, th.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to kaiwastats!").
				Description(fmt.Sprintf("Found %d device(s). A couple of choices and you're in.", deviceCount)),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.Theme),
			huh.NewSelect[string]().
				Title("Recompute debounce").
				Description("How long cached stats stay fresh after new turns arrive.").
				Options(
					huh.NewOption("10 minutes", "10"),
					huh.NewOption("30 minutes", "30"),
					huh.NewOption("60 minutes", "60"),
				).
				Value(&vals.Debounce),
		),
	)
}

// saveSetupConfig persists the form answers and returns the updated config.
func (a *App) saveSetupConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	if a.setupVals.Theme != "" {
		cfg.Appearance.Theme = a.setupVals.Theme
		theme.SetActive(cfg.Appearance.Theme)
	}
	if mins, err := strconv.Atoi(a.setupVals.Debounce); err == nil && mins > 0 {
		cfg.Scheduler.DebounceMinutes = mins
	}

	_ = config.Save(cfg) // settings still apply for this session on failure
	return cfg
}
