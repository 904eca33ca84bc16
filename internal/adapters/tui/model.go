// Package tui provides the terminal user interface implementation
// using the Bubbletea framework.
package tui

import (
	"fmt"
	"reflect"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xvierd/focus-cli/internal/config"
	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

// resolveTheme fills any empty string fields in the given ThemeConfig with defaults.
// If theme is nil, returns the full default theme.
func resolveTheme(theme *config.ThemeConfig) config.ThemeConfig {
	defaults := config.DefaultThemeConfig()
	if theme == nil {
		return defaults
	}
	resolved := *theme
	rv := reflect.ValueOf(&resolved).Elem()
	dv := reflect.ValueOf(defaults)
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.String() == "" {
			f.SetString(dv.Field(i).String())
		}
	}
	return resolved
}

// tickMsg is sent once per second.
type tickMsg time.Time

// stateMsg wraps an updated state fetched asynchronously.
type stateMsg struct {
	state *domain.CurrentState
}

// commandDoneMsg reports the outcome of a session command or selection.
type commandDoneMsg struct {
	action string
	err    error
}

// Model is the focus dashboard.
type Model struct {
	state    *domain.CurrentState
	progress progress.Model
	width    int
	height   int
	cursor   int
	pending  string
	theme    config.ThemeConfig

	lastError error

	fetchState      func() *domain.CurrentState
	commandCallback func(ports.TimerCommand) error
	selectCallback  func(string) error
	tickCallback    func()
}

// NewModel creates a new dashboard model.
func NewModel(initialState *domain.CurrentState, theme *config.ThemeConfig) Model {
	resolved := resolveTheme(theme)
	if initialState == nil {
		initialState = &domain.CurrentState{Session: domain.NewIdleState(nil)}
	}
	m := Model{
		state:    initialState,
		progress: progress.New(progress.WithGradient(resolved.GradientStart, resolved.GradientEnd)),
		theme:    resolved,
	}
	m.cursor = m.selectedIndex()
	return m
}

// Init starts the one-second tick.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStateCmd returns a tea.Cmd that fetches state asynchronously.
func fetchStateCmd(fetch func() *domain.CurrentState) tea.Cmd {
	return func() tea.Msg {
		return stateMsg{state: fetch()}
	}
}

// runCommand runs a session command off the update loop; start and stop
// wait on the backend.
func runCommand(cb func(ports.TimerCommand) error, cmd ports.TimerCommand) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg{action: string(cmd), err: cb(cmd)}
	}
}

func runSelect(cb func(string) error, id string) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg{action: "select", err: cb(id)}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = progressWidth(msg.Width)
	case tickMsg:
		if m.tickCallback != nil {
			m.tickCallback()
		}
		cmds := []tea.Cmd{tickCmd()}
		if m.fetchState != nil {
			cmds = append(cmds, fetchStateCmd(m.fetchState))
		}
		return m, tea.Batch(cmds...)
	case stateMsg:
		if msg.state != nil {
			m.setState(msg.state)
		}
	case *domain.CurrentState:
		if msg != nil {
			m.setState(msg)
		}
	case commandDoneMsg:
		m.pending = ""
		m.lastError = msg.err
		if m.fetchState != nil {
			return m, fetchStateCmd(m.fetchState)
		}
	}

	newProgress, cmd := m.progress.Update(msg)
	if p, ok := newProgress.(progress.Model); ok {
		m.progress = p
	}
	return m, cmd
}

func (m *Model) setState(state *domain.CurrentState) {
	m.state = state
	m.cursor = m.selectedIndex()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	phase := m.state.Session.Phase
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "s":
		if (phase == domain.PhaseIdle || phase == domain.PhasePaused) && m.pending == "" {
			return m.dispatch(ports.CmdStart)
		}
	case "p":
		if phase == domain.PhaseRunning {
			return m.dispatch(ports.CmdPause)
		}
	case "x":
		if (phase == domain.PhaseRunning || phase == domain.PhasePaused) && m.pending == "" {
			return m.dispatch(ports.CmdStop)
		}
	case "r":
		if phase == domain.PhaseIdle && m.pending == "" {
			return m.dispatch(ports.CmdRevert)
		}
	case "1", "2", "3":
		return m.pick(int(msg.String()[0] - '1'))
	case "left", "up", "h", "k":
		return m.pick(m.cursor - 1)
	case "right", "down", "l", "j":
		return m.pick(m.cursor + 1)
	}
	return m, nil
}

func (m Model) dispatch(cmd ports.TimerCommand) (tea.Model, tea.Cmd) {
	if m.commandCallback == nil {
		return m, nil
	}
	m.pending = string(cmd)
	m.lastError = nil
	return m, runCommand(m.commandCallback, cmd)
}

// pick selects the displayed rule at index. The picker is inert while a
// session is active.
func (m Model) pick(index int) (tea.Model, tea.Cmd) {
	if !m.state.CanSelectRule() || m.pending != "" {
		return m, nil
	}
	if index < 0 || index >= len(m.state.Displayed) {
		return m, nil
	}
	m.cursor = index
	rule := m.state.Displayed[index]
	if m.state.SelectedRule != nil && m.state.SelectedRule.ID == rule.ID {
		return m, nil
	}
	if m.selectCallback == nil {
		return m, nil
	}
	m.pending = "select"
	m.lastError = nil
	return m, runSelect(m.selectCallback, rule.ID)
}

// selectedIndex returns the picker position of the selected rule, or 0.
func (m Model) selectedIndex() int {
	if m.state.SelectedRule == nil {
		return 0
	}
	for i, r := range m.state.Displayed {
		if r.ID == m.state.SelectedRule.ID {
			return i
		}
	}
	return 0
}

// phaseColor returns the accent color for the current phase.
func (m Model) phaseColor() lipgloss.Color {
	switch m.state.Session.Phase {
	case domain.PhaseRunning, domain.PhaseStarting, domain.PhaseCompleting:
		return lipgloss.Color(m.theme.ColorFocus)
	case domain.PhasePaused, domain.PhaseStopping:
		return lipgloss.Color(m.theme.ColorPaused)
	default:
		return lipgloss.Color(m.theme.ColorIdle)
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	color := m.phaseColor()
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(color).MarginBottom(1)
	labelStyle := lipgloss.NewStyle().Foreground(color)
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorHelp))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorBlocked))

	session := m.state.Session
	var sections []string

	sections = append(sections, titleStyle.Render("◎ Focus"))
	sections = append(sections, renderBigTime(formatCountdown(session.RemainingSeconds), color, m.width))
	sections = append(sections, "")
	sections = append(sections, m.progress.ViewAs(session.Progress()))
	sections = append(sections, labelStyle.Render(m.statusLine()))
	sections = append(sections, "")
	sections = append(sections, m.viewPicker())

	if m.state.SelectedRule != nil {
		sections = append(sections, "")
		sections = append(sections, m.viewApps(m.state.SelectedRule)...)
	}

	sections = append(sections, "")
	sections = append(sections, helpStyle.Render(statsLine(m.state.Stats)))

	if m.lastError != nil {
		sections = append(sections, errStyle.Render("Error: "+m.lastError.Error()))
	}

	sections = append(sections, "")
	sections = append(sections, helpStyle.Render(m.helpLine()))

	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) statusLine() string {
	label := domain.GetPhaseLabel(m.state.Session.Phase)
	if m.pending != "" {
		label += "..."
	}
	if m.state.SelectedRule == nil {
		return label + " · no rule selected"
	}
	line := fmt.Sprintf("%s · %s", label, m.state.SelectedRule.Name)
	if m.state.SelectedRule.StrictMode {
		badge := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.ColorBlocked)).Render(" STRICT")
		line += badge
	}
	return line
}

func (m Model) helpLine() string {
	switch m.state.Session.Phase {
	case domain.PhaseRunning:
		return "[p]ause  [x] stop  [q]uit"
	case domain.PhasePaused:
		return "[s] resume  [x] stop  [q]uit"
	case domain.PhaseIdle:
		if len(m.state.Displayed) > 0 {
			return "[1-3] rule  [s]tart  [r]evert mode  [q]uit"
		}
		return "[s]tart  [r]evert mode  [q]uit"
	default:
		return "[q]uit"
	}
}

func statsLine(stats domain.SessionStats) string {
	return fmt.Sprintf("Today: %d sessions · %s focused · streak %d",
		stats.TodaySessions, stats.FocusTimeLabel(), stats.CurrentStreak)
}

// progressWidth clamps the bar to the window.
func progressWidth(width int) int {
	w := width - 4
	if w > 60 {
		w = 60
	}
	if w < 10 {
		w = 10
	}
	return w
}

// formatCountdown renders seconds as MM:SS; minutes are not wrapped into hours.
func formatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
