package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"github.com/xvierd/focus-cli/internal/config"
	"github.com/xvierd/focus-cli/internal/domain"
	"github.com/xvierd/focus-cli/internal/ports"
)

// Dashboard implements the ports.Dashboard interface using Bubbletea.
type Dashboard struct {
	theme *config.ThemeConfig

	mu              sync.Mutex
	program         *tea.Program
	fetchState      func() *domain.CurrentState
	commandCallback func(ports.TimerCommand) error
	selectCallback  func(string) error
	tickCallback    func()
}

// NewDashboard creates a new dashboard adapter.
func NewDashboard(theme *config.ThemeConfig) *Dashboard {
	return &Dashboard{theme: theme}
}

// Ensure Dashboard implements ports.Dashboard.
var _ ports.Dashboard = (*Dashboard)(nil)

// Run starts the dashboard and blocks until the user quits or ctx ends.
func (d *Dashboard) Run(ctx context.Context, initialState *domain.CurrentState) error {
	d.mu.Lock()
	model := NewModel(initialState, d.theme)
	model.fetchState = d.fetchState
	model.commandCallback = d.commandCallback
	model.selectCallback = d.selectCallback
	model.tickCallback = d.tickCallback
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	d.program = program
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.program = nil
		d.mu.Unlock()
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// Stop gracefully stops the dashboard.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.program != nil {
		d.program.Quit()
	}
}

// SetFetchState implements ports.Dashboard.
func (d *Dashboard) SetFetchState(fetch func() *domain.CurrentState) {
	d.mu.Lock()
	d.fetchState = fetch
	d.mu.Unlock()
}

// SetCommandCallback implements ports.Dashboard.
func (d *Dashboard) SetCommandCallback(callback func(cmd ports.TimerCommand) error) {
	d.mu.Lock()
	d.commandCallback = callback
	d.mu.Unlock()
}

// SetSelectCallback implements ports.Dashboard.
func (d *Dashboard) SetSelectCallback(callback func(ruleID string) error) {
	d.mu.Lock()
	d.selectCallback = callback
	d.mu.Unlock()
}

// SetTickCallback implements ports.Dashboard.
func (d *Dashboard) SetTickCallback(callback func()) {
	d.mu.Lock()
	d.tickCallback = callback
	d.mu.Unlock()
}

// UpdateState pushes a snapshot into the running dashboard.
func (d *Dashboard) UpdateState(state *domain.CurrentState) {
	d.mu.Lock()
	program := d.program
	d.mu.Unlock()

	if program != nil {
		program.Send(state)
	}
}

// terminalWidth returns the stdout width, or 80 when stdout is not a terminal.
func terminalWidth() int {
	fd := os.Stdout.Fd()
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// ShowStatus prints the current state without starting interactive mode.
func ShowStatus(w io.Writer, state *domain.CurrentState) error {
	return writeStatus(w, state, terminalWidth())
}

func writeStatus(w io.Writer, state *domain.CurrentState, width int) error {
	var b strings.Builder
	session := state.Session

	if session.Active() {
		fmt.Fprintf(&b, "◎ %s", domain.GetPhaseLabel(session.Phase))
		if state.SelectedRule != nil {
			fmt.Fprintf(&b, ": %s", state.SelectedRule.Name)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "   Remaining: %s of %s\n", formatCountdown(session.RemainingSeconds), formatCountdown(session.TotalSeconds))

		bar := progress.New(progress.WithoutPercentage(), progress.WithSolidFill(config.DefaultThemeConfig().ColorFocus))
		bar.Width = progressWidth(width) - 3
		fmt.Fprintf(&b, "   %s %3.0f%%\n", bar.ViewAs(session.Progress()), session.Progress()*100)

		if !session.StartedAt.IsZero() {
			fmt.Fprintf(&b, "   Started: %s\n", session.StartedAt.Format("15:04"))
		}
		if session.GitBranch != "" {
			fmt.Fprintf(&b, "   Git: %s\n", session.GitBranch)
		}
	} else {
		b.WriteString("No active focus session.\n")
		if state.SelectedRule != nil {
			fmt.Fprintf(&b, "   Selected: %s (%s)\n", state.SelectedRule.Name, formatCountdown(session.TotalSeconds))
		} else {
			b.WriteString("   Selected: none\n")
		}
	}

	if rule := state.SelectedRule; rule != nil {
		appWidth := width - 16
		if appWidth < 20 {
			appWidth = 20
		}
		if rule.StrictMode {
			b.WriteString("   Strict mode: on\n")
		}
		fmt.Fprintf(&b, "   Blocked:   %s\n", appLine(rule.BlockedApps, appWidth))
		fmt.Fprintf(&b, "   Allowed:   %s\n", appLine(rule.AllowedApps, appWidth))
		fmt.Fprintf(&b, "   Minimized: %s\n", appLine(rule.MinimizedApps, appWidth))
	}

	fmt.Fprintf(&b, "\n%s\n", statsLine(state.Stats))

	_, err := io.WriteString(w, b.String())
	return err
}

// ShowError displays an error message.
func ShowError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
