package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/xvierd/focus-cli/internal/config"
	"github.com/xvierd/focus-cli/internal/domain"
)

// PickerItem represents one option in the picker.
type PickerItem struct {
	ID    string
	Label string
	Desc  string
}

// PickerResult holds the outcome of a picker interaction.
type PickerResult struct {
	Index   int
	ID      string
	Aborted bool
}

// RuleItems turns rules into picker items, marking the displayed ones.
func RuleItems(rules []*domain.FocusRule, displayed []string) []PickerItem {
	shown := make(map[string]bool, len(displayed))
	for _, id := range displayed {
		shown[id] = true
	}
	items := make([]PickerItem, 0, len(rules))
	for _, r := range rules {
		desc := fmt.Sprintf("%3dm", r.DurationMinutes)
		if r.StrictMode {
			desc += " strict"
		}
		if shown[r.ID] {
			desc += " ★"
		}
		items = append(items, PickerItem{ID: r.ID, Label: r.Name, Desc: desc})
	}
	return items
}

type pickerModel struct {
	title   string
	items   []PickerItem
	footer  string
	query   string
	visible []int
	cursor  int
	aborted bool
	theme   config.ThemeConfig
}

func newPickerModel(title string, items []PickerItem, footer string, initial string, theme config.ThemeConfig) pickerModel {
	m := pickerModel{
		title:  title,
		items:  items,
		footer: footer,
		theme:  theme,
	}
	m.filter()
	for i, idx := range m.visible {
		if items[idx].ID == initial {
			m.cursor = i
		}
	}
	return m
}

// filter recomputes the visible items for the current query.
func (m *pickerModel) filter() {
	m.visible = m.visible[:0]
	if m.query == "" {
		for i := range m.items {
			m.visible = append(m.visible, i)
		}
	} else {
		labels := make([]string, len(m.items))
		for i, item := range m.items {
			labels[i] = item.Label
		}
		for _, match := range fuzzy.Find(m.query, labels) {
			m.visible = append(m.visible, match.Index)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.Type {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case tea.KeyEnter:
		if len(m.visible) > 0 {
			return m, tea.Quit
		}
	case tea.KeyEsc, tea.KeyCtrlC:
		m.aborted = true
		return m, tea.Quit
	case tea.KeyBackspace:
		if m.query != "" {
			r := []rune(m.query)
			m.query = string(r[:len(r)-1])
			m.filter()
		}
	case tea.KeyRunes, tea.KeySpace:
		if keyMsg.Type == tea.KeySpace {
			m.query += " "
		} else {
			m.query += string(keyMsg.Runes)
		}
		m.cursor = 0
		m.filter()
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.ColorFocus))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorFocus)).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorHelp))

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  " + m.title))
	if m.query != "" {
		b.WriteString(dimStyle.Render("  /" + m.query))
	}
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString(dimStyle.Render("    no match") + "\n")
	}
	for i, idx := range m.visible {
		item := m.items[idx]
		line := fmt.Sprintf("%-16s %s", item.Label, item.Desc)
		if i == m.cursor {
			b.WriteString("  " + activeStyle.Render("▸ "+line) + "\n")
		} else {
			b.WriteString("    " + dimStyle.Render(line) + "\n")
		}
	}

	if m.footer != "" {
		b.WriteString("\n" + dimStyle.Render("  "+m.footer) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("  type to filter · ↑/↓ move · enter select · esc cancel") + "\n")

	return b.String()
}

// result converts the final model into a PickerResult.
func (m pickerModel) result() PickerResult {
	if m.aborted || len(m.visible) == 0 {
		return PickerResult{Aborted: true}
	}
	idx := m.visible[m.cursor]
	return PickerResult{Index: idx, ID: m.items[idx].ID}
}

// RunPicker launches an interactive picker with type-to-filter and returns
// the chosen item. initial is the ID the cursor starts on.
func RunPicker(title string, items []PickerItem, footer, initial string, theme *config.ThemeConfig) PickerResult {
	m := newPickerModel(title, items, footer, initial, resolveTheme(theme))

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return PickerResult{Aborted: true}
	}
	return final.(pickerModel).result()
}

// TextPromptResult holds the outcome of a text prompt.
type TextPromptResult struct {
	Value   string
	Aborted bool
}

type textPromptModel struct {
	title   string
	input   textinput.Model
	aborted bool
	theme   config.ThemeConfig
}

func (m textPromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m textPromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEnter:
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.aborted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m textPromptModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.ColorFocus))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorHelp))

	return "\n" + titleStyle.Render("  "+m.title) + " " + m.input.View() + "\n\n" +
		dimStyle.Render("  enter confirm · esc cancel") + "\n"
}

// RunTextPrompt asks for one line of text, prefilled with value.
func RunTextPrompt(title, placeholder, value string, theme *config.ThemeConfig) TextPromptResult {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.SetValue(value)
	ti.CharLimit = 200
	ti.Width = 50
	ti.Focus()

	m := textPromptModel{
		title: title,
		input: ti,
		theme: resolveTheme(theme),
	}

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return TextPromptResult{Aborted: true}
	}
	out := final.(textPromptModel)
	if out.aborted {
		return TextPromptResult{Aborted: true}
	}
	return TextPromptResult{Value: strings.TrimSpace(out.input.Value())}
}
