package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xvierd/focus-cli/internal/domain"
)

// viewPicker renders the displayed rules as numbered cards.
func (m Model) viewPicker() string {
	if len(m.state.Displayed) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorHelp)).
			Render("No rules shown. Use `focus rules display <id>`.")
	}

	locked := !m.state.CanSelectRule()
	activeStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(m.phaseColor()).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.phaseColor()).
		Padding(0, 1)
	idleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.ColorHelp)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.ColorHelp)).
		Padding(0, 1)
	if locked {
		idleStyle = idleStyle.Faint(true)
	}

	cards := make([]string, 0, len(m.state.Displayed))
	for i, rule := range m.state.Displayed {
		text := fmt.Sprintf("%d %s\n%dm", i+1, rule.Name, rule.DurationMinutes)
		selected := m.state.SelectedRule != nil && m.state.SelectedRule.ID == rule.ID
		if selected {
			cards = append(cards, activeStyle.Render(text))
		} else {
			cards = append(cards, idleStyle.Render(text))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

// viewApps renders the three app lists of a rule.
func (m Model) viewApps(rule *domain.FocusRule) []string {
	labelStyle := lipgloss.NewStyle().Bold(true)
	blocked := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorBlocked))
	allowed := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorAllowed))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorHelp))

	width := m.width - 16
	if width < 20 {
		width = 20
	}

	return []string{
		labelStyle.Render("Blocked   ") + blocked.Render(appLine(rule.BlockedApps, width)),
		labelStyle.Render("Allowed   ") + allowed.Render(appLine(rule.AllowedApps, width)),
		labelStyle.Render("Minimized ") + dim.Render(appLine(rule.MinimizedApps, width)),
	}
}

// appLine joins app names, truncating with a count of the hidden entries.
func appLine(apps []string, width int) string {
	if len(apps) == 0 {
		return "none"
	}
	var b strings.Builder
	for i, app := range apps {
		sep := ""
		if i > 0 {
			sep = ", "
		}
		more := fmt.Sprintf(" +%d", len(apps)-i)
		if b.Len()+len(sep)+len(app)+len(more) > width && i > 0 {
			b.WriteString(more)
			return b.String()
		}
		b.WriteString(sep)
		b.WriteString(app)
	}
	return b.String()
}
