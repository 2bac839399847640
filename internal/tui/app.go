// Package tui provides the interactive Bubble Tea dashboard for kaiwastats.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/kumalab/kaiwastats/internal/analyzer"
	"github.com/kumalab/kaiwastats/internal/config"
	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/store"
	"github.com/kumalab/kaiwastats/internal/tui/components"
	"github.com/kumalab/kaiwastats/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// deviceData pairs a registered device with its current stats bundle.
type deviceData struct {
	Info  model.DeviceInfo
	Stats model.DeviceStats
}

// DataLoadedMsg is sent when the initial device load finishes.
type DataLoadedMsg struct {
	Devices  []deviceData
	Err      error
	LoadTime time.Duration
}

// ProgressMsg reports per-device loading progress.
type ProgressMsg struct {
	Current int
	Total   int
}

// RefreshDataMsg is sent when a background data refresh completes.
type RefreshDataMsg struct {
	Devices  []deviceData
	LoadTime time.Duration
}

// App is the root Bubble Tea model.
type App struct {
	cfg config.Config

	// Data
	devices  []deviceData
	loaded   bool
	loadErr  error
	loadTime time.Duration

	// Auto-refresh state
	autoRefresh     bool
	refreshInterval time.Duration
	lastRefresh     time.Time
	refreshing      bool

	// UI state
	width     int
	height    int
	activeTab int
	cursor    int // selected device
	showHelp  bool

	// Per-tab state
	settings settingsState

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals setupValues
	needSetup bool

	// Loading — channel-based progress subscription
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg // progress + completion messages from loader goroutine
}

const (
	minTerminalWidth = 70
	compactWidth     = 110
	minContentHeight = 5

	defaultRefreshInterval = 30 * time.Second
)

// NewApp creates a new TUI app model.
func NewApp(cfg config.Config) App {
	needSetup := !config.Exists()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	return App{
		cfg:             cfg,
		needSetup:       needSetup,
		refreshInterval: defaultRefreshInterval,
		spinner:         sp,
		loadSub:         make(chan tea.Msg, 1),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		loadDataCmd(a.cfg, a.loadSub),
		a.spinner.Tick,
		tickCmd(),
	)
}

func (a App) selected() (deviceData, bool) {
	if a.cursor < 0 || a.cursor >= len(a.devices) {
		return deviceData{}, false
	}
	return a.devices[a.cursor], true
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || (a.needSetup && a.setupForm != nil) {
			return a, nil
		}

		switch msg.Button {
		case tea.MouseButtonWheelUp:
			if a.cursor > 0 {
				a.cursor--
			}
			return a, nil

		case tea.MouseButtonWheelDown:
			if a.cursor < len(a.devices)-1 {
				a.cursor++
			}
			return a, nil

		case tea.MouseButtonLeft:
			// Tab bar occupies the first line
			if msg.Y == 0 {
				if tab := a.tabAtX(msg.X); tab >= 0 && tab < len(components.Tabs) {
					a.activeTab = tab
				}
			}
			return a, nil
		}
		return a, nil

	case tea.KeyMsg:
		key := msg.String()

		if key == "ctrl+c" {
			return a, tea.Quit
		}

		if !a.loaded {
			return a, nil
		}

		// First-run setup wizard intercepts all keys
		if a.needSetup && a.setupForm != nil {
			return a.updateSetupForm(msg)
		}

		// Settings tab has its own keybindings (text input)
		if a.activeTab == 3 && a.settings.editing {
			return a.updateSettingsInput(msg)
		}

		if key == "?" {
			a.showHelp = !a.showHelp
			return a, nil
		}
		if a.showHelp {
			a.showHelp = false
			return a, nil
		}

		// Settings tab navigation (non-editing mode)
		if a.activeTab == 3 {
			switch key {
			case "j", "down":
				if a.settings.cursor < settingsFieldCount-1 {
					a.settings.cursor++
				}
				return a, nil
			case "k", "up":
				if a.settings.cursor > 0 {
					a.settings.cursor--
				}
				return a, nil
			case "enter":
				return a.settingsStartEdit()
			}
		}

		// Device selection on data tabs
		if a.activeTab < 3 {
			switch key {
			case "j", "down":
				if a.cursor < len(a.devices)-1 {
					a.cursor++
				}
				return a, nil
			case "k", "up":
				if a.cursor > 0 {
					a.cursor--
				}
				return a, nil
			}
		}

		if key == "q" {
			return a, tea.Quit
		}

		// Manual refresh
		if key == "r" && !a.refreshing {
			a.refreshing = true
			return a, refreshDataCmd(a.cfg)
		}

		// Toggle auto-refresh
		if key == "R" {
			a.autoRefresh = !a.autoRefresh
			return a, nil
		}

		// Tab navigation
		switch key {
		case "o":
			a.activeTab = 0
		case "t":
			a.activeTab = 1
		case "p":
			a.activeTab = 2
		case "x":
			a.activeTab = 3
		case "left":
			a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		case "right":
			a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		}
		return a, nil

	case DataLoadedMsg:
		a.devices = msg.Devices
		a.loadErr = msg.Err
		a.loaded = true
		a.loadTime = msg.LoadTime
		a.lastRefresh = time.Now()
		a.clampCursor()

		// Activate first-run setup after data loads
		if a.needSetup {
			a.setupForm = newSetupForm(len(a.devices), &a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			return a, a.setupForm.Init()
		}

		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.loaded && a.autoRefresh && !a.refreshing {
			if time.Since(a.lastRefresh) >= a.refreshInterval {
				a.refreshing = true
				cmds = append(cmds, refreshDataCmd(a.cfg))
			}
		}
		return a, tea.Batch(cmds...)

	case RefreshDataMsg:
		a.refreshing = false
		a.lastRefresh = time.Now()
		if msg.Devices != nil {
			a.devices = msg.Devices
			a.loadTime = msg.LoadTime
			a.clampCursor()
		}
		return a, nil
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	return a, nil
}

func (a *App) clampCursor() {
	if a.cursor >= len(a.devices) {
		a.cursor = len(a.devices) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	if a.setupForm.State == huh.StateCompleted {
		a.cfg = a.saveSetupConfig()
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}

	if a.setupForm.State == huh.StateAborted {
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}

	return a, cmd
}

func (a App) isCompactLayout() bool {
	return a.width < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}

	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}

	if !a.loaded {
		return a.viewLoading()
	}

	if a.needSetup && a.setupForm != nil {
		return a.setupForm.View()
	}

	if a.showHelp {
		return a.viewHelp()
	}

	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := a.height
	if h < 5 {
		h = 5
	}

	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  kaiwastats needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)

	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)

	logoStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.Surface).
		Bold(true)

	subtitleStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	spinnerStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ kaiwastats"))
	b.WriteString(subtitleStyle.Render(" · Conversation Analytics"))
	b.WriteString("\n\n")

	if a.progressMax > 0 {
		barW := 36
		pct := float64(a.progress) / float64(a.progressMax)
		b.WriteString(spinnerStyle.Render(a.spinner.View()))
		b.WriteString(subtitleStyle.Render(fmt.Sprintf(" Analyzing %d/%d devices\n\n", a.progress, a.progressMax)))
		b.WriteString(components.ProgressBar(pct, barW))
	} else {
		b.WriteString(spinnerStyle.Render(a.spinner.View()))
		b.WriteString(subtitleStyle.Render(" Loading devices..."))
	}

	card := cardStyle.Render(b.String())

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.Surface).
		Bold(true)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Cyan).
		Background(t.Surface).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	dimStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")

	bindings := []struct{ key, desc string }{
		{"o t p x", "Jump to tab"},
		{"← →", "Previous / Next tab"},
		{"j k", "Switch device"},
		{"Enter", "Edit setting"},
		{"Esc", "Cancel edit"},
		{"r", "Refresh data"},
		{"R", "Toggle auto-refresh"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}
	for _, bind := range bindings {
		fmt.Fprintf(&b, "  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
			descStyle.Render(bind.desc))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	card := cardStyle.Render(b.String())

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	h := a.height

	header := components.RenderTabBar(a.activeTab, w) + a.renderDeviceStrip(w)

	var dataAge string
	if a.loadTime > 0 {
		dataAge = fmt.Sprintf("%.2fs", a.loadTime.Seconds())
	}
	statusBar := components.RenderStatusBar(w, dataAge, len(a.devices), a.refreshing, a.autoRefresh)

	headerH := lipgloss.Height(header)
	statusH := lipgloss.Height(statusBar)
	contentH := h - headerH - statusH
	if contentH < minContentHeight {
		contentH = minContentHeight
	}

	var content string
	switch {
	case len(a.devices) == 0 && a.activeTab < 3:
		content = a.renderEmptyState(w)
	case a.activeTab == 0:
		content = a.renderOverviewTab(w)
	case a.activeTab == 1:
		content = a.renderTopicsTab(w)
	case a.activeTab == 2:
		content = a.renderPatternsTab(w)
	case a.activeTab == 3:
		content = a.renderSettingsTab(w)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, w, t.Background)

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)

	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// renderDeviceStrip renders the second header line: one pill per device,
// the selected one highlighted.
func (a App) renderDeviceStrip(w int) string {
	t := theme.Active

	rowStyle := lipgloss.NewStyle().
		Background(t.Surface).
		Width(w)

	if len(a.devices) == 0 {
		dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
		return "\n" + rowStyle.Render(dim.Render(" no devices"))
	}

	activeStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.Surface).
		Bold(true)
	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface)
	sepStyle := lipgloss.NewStyle().
		Foreground(t.Border).
		Background(t.Surface)

	var parts []string
	for i, d := range a.devices {
		name := d.Info.Name
		if name == "" {
			name = d.Info.DeviceID
		}
		if i == a.cursor {
			parts = append(parts, activeStyle.Render("◆ "+name))
		} else {
			parts = append(parts, inactiveStyle.Render("◇ "+name))
		}
	}

	return "\n" + rowStyle.Render(" "+strings.Join(parts, sepStyle.Render("  "))+" ")
}

func (a App) renderEmptyState(w int) string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		Background(t.Surface).
		Bold(true)
	mutedStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	var b strings.Builder
	b.WriteString(titleStyle.Render("No devices yet"))
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render("Start the daemon with `kaiwastats serve` and point\nyour devices at POST /v1/turns to begin collecting."))
	if a.loadErr != nil {
		errStyle := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface)
		b.WriteString("\n\n")
		b.WriteString(errStyle.Render(a.loadErr.Error()))
	}

	card := cardStyle.Render(b.String())
	return "\n" + lipgloss.PlaceHorizontal(w, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Data loading ───────────────────────────────────────────────

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadDevices opens the store and assembles per-device stats. Persisted
// bundles are reused when they still cover every stored turn; anything
// stale is recomputed and written back.
func loadDevices(cfg config.Config, progressFn func(current, total int)) ([]deviceData, error) {
	st, err := store.Open(cfg.DBPath(), cfg.General.MaxHistoryPerDevice)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	infos, err := st.Devices()
	if err != nil {
		return nil, err
	}

	an := analyzer.New(nil, cfg.Analysis.KeywordCloudCap, zerolog.Nop())

	out := make([]deviceData, 0, len(infos))
	for i, info := range infos {
		stats, err := st.LoadStats(info.DeviceID)
		count, countErr := st.TurnCount(info.DeviceID)
		if err != nil || countErr != nil || stats.SourceTurnCount != count {
			turns, turnsErr := st.Turns(info.DeviceID)
			if turnsErr != nil {
				continue
			}
			stats = an.Compute(info, turns)
			_ = st.SaveStats(stats) // best-effort; the dashboard can still render
		}
		out = append(out, deviceData{Info: info, Stats: stats})
		if progressFn != nil {
			progressFn(i+1, len(infos))
		}
	}
	return out, nil
}

// loadDataCmd starts the initial load in a background goroutine. It streams
// ProgressMsg updates and a final DataLoadedMsg through sub.
func loadDataCmd(cfg config.Config, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			start := time.Now()

			// Non-blocking send so the loader is never stalled by a
			// full channel; the next update catches up.
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}

			devices, err := loadDevices(cfg, progressFn)
			sub <- DataLoadedMsg{
				Devices:  devices,
				Err:      err,
				LoadTime: time.Since(start),
			}
		}()

		// Block until the first message (either ProgressMsg or DataLoadedMsg)
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// refreshDataCmd refreshes device data in the background (no progress UI).
func refreshDataCmd(cfg config.Config) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		devices, err := loadDevices(cfg, nil)
		if err != nil {
			return RefreshDataMsg{LoadTime: time.Since(start)}
		}
		return RefreshDataMsg{
			Devices:  devices,
			LoadTime: time.Since(start),
		}
	}
}

// ─── Helpers ────────────────────────────────────────────────────

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color so
// gaps between cards and empty lines are properly filled.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")

	var result strings.Builder
	for i, line := range lines {
		placed := lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
		result.WriteString(placed)
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)

		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW

		// Separator is one column between tabs.
		if i < len(components.Tabs)-1 {
			pos++
		}
	}
	return -1
}
