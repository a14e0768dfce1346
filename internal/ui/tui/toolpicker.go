// Package tui provides interactive terminal UI components using BubbleTea.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/confsync/confsync/internal/engine"
)

var scopeTitle = cases.Title(language.English)

// ToolPickerAction represents the action taken in the tool picker.
type ToolPickerAction int

const (
	// ToolPickerActionNone means no action was taken (user quit).
	ToolPickerActionNone ToolPickerAction = iota
	// ToolPickerActionConfirm means the user confirmed a selection.
	ToolPickerActionConfirm
)

// ToolPickerResult contains the outcome of the picker interaction.
type ToolPickerResult struct {
	Action ToolPickerAction
	// Tools are the selected tool identifiers. Empty means all shown.
	Tools []string
	// Scope is the selected deployment scope.
	Scope engine.ScopeSelection
}

type toolPickerPhase int

const (
	toolPickerPhaseTools toolPickerPhase = iota
	toolPickerPhaseScope
)

// toolPickerKeyMap defines the key bindings for the picker.
type toolPickerKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Confirm key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func defaultToolPickerKeyMap() toolPickerKeyMap {
	return toolPickerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle"),
		),
		All: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle all"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

var (
	pickerTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	pickerCursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	pickerSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	pickerDimStyle      = lipgloss.NewStyle().Faint(true)
	pickerHelpStyle     = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

// pickerEntry is one selectable tool row.
type pickerEntry struct {
	id        string
	name      string
	installed bool
	selected  bool
}

// ToolPickerModel is the BubbleTea model for choosing tools and a scope
// before an interactive sync.
type ToolPickerModel struct {
	entries []pickerEntry
	scopes  []engine.ScopeSelection
	keys    toolPickerKeyMap

	phase       toolPickerPhase
	cursor      int
	scopeCursor int
	result      ToolPickerResult
	done        bool
}

// NewToolPicker creates a picker over the given detections. Installed tools
// start selected.
func NewToolPicker(detections []engine.ToolDetection) ToolPickerModel {
	entries := make([]pickerEntry, 0, len(detections))
	for _, d := range detections {
		entries = append(entries, pickerEntry{
			id:        d.Tool,
			name:      d.Name,
			installed: d.Result.Installed,
			selected:  d.Result.Installed,
		})
	}
	return ToolPickerModel{
		entries: entries,
		scopes:  []engine.ScopeSelection{engine.ScopeAll, engine.ScopeUser, engine.ScopeProject},
		keys:    defaultToolPickerKeyMap(),
	}
}

// Init implements tea.Model.
func (m ToolPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ToolPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.result = ToolPickerResult{Action: ToolPickerActionNone}
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(keyMsg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(keyMsg, m.keys.Toggle):
		if m.phase == toolPickerPhaseTools && len(m.entries) > 0 {
			m.entries[m.cursor].selected = !m.entries[m.cursor].selected
		}
	case key.Matches(keyMsg, m.keys.All):
		if m.phase == toolPickerPhaseTools {
			m.toggleAll()
		}
	case key.Matches(keyMsg, m.keys.Back):
		if m.phase == toolPickerPhaseScope {
			m.phase = toolPickerPhaseTools
		}
	case key.Matches(keyMsg, m.keys.Confirm):
		return m.confirm()
	}
	return m, nil
}

func (m *ToolPickerModel) moveCursor(delta int) {
	if m.phase == toolPickerPhaseTools {
		m.cursor = clamp(m.cursor+delta, 0, len(m.entries)-1)
	} else {
		m.scopeCursor = clamp(m.scopeCursor+delta, 0, len(m.scopes)-1)
	}
}

func (m *ToolPickerModel) toggleAll() {
	anyOff := false
	for _, e := range m.entries {
		if !e.selected {
			anyOff = true
			break
		}
	}
	for i := range m.entries {
		m.entries[i].selected = anyOff
	}
}

func (m ToolPickerModel) confirm() (tea.Model, tea.Cmd) {
	if m.phase == toolPickerPhaseTools {
		if len(m.selectedIDs()) == 0 {
			return m, nil
		}
		m.phase = toolPickerPhaseScope
		return m, nil
	}

	m.result = ToolPickerResult{
		Action: ToolPickerActionConfirm,
		Tools:  m.selectedIDs(),
		Scope:  m.scopes[m.scopeCursor],
	}
	m.done = true
	return m, tea.Quit
}

func (m ToolPickerModel) selectedIDs() []string {
	var ids []string
	for _, e := range m.entries {
		if e.selected {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// View implements tea.Model.
func (m ToolPickerModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	if m.phase == toolPickerPhaseTools {
		b.WriteString(pickerTitleStyle.Render("Select tools to sync"))
		b.WriteString("\n\n")
		for i, e := range m.entries {
			cursor := "  "
			if i == m.cursor {
				cursor = pickerCursorStyle.Render("> ")
			}
			check := "[ ]"
			if e.selected {
				check = pickerSelectedStyle.Render("[x]")
			}
			label := fmt.Sprintf("%s %s", e.name, pickerDimStyle.Render("("+e.id+")"))
			if !e.installed {
				label += pickerDimStyle.Render(" not installed")
			}
			fmt.Fprintf(&b, "%s%s %s\n", cursor, check, label)
		}
		b.WriteString(pickerHelpStyle.Render("space toggle · a all · enter continue · q quit"))
		return b.String()
	}

	b.WriteString(pickerTitleStyle.Render("Select scope"))
	b.WriteString("\n\n")
	for i, s := range m.scopes {
		cursor := "  "
		if i == m.scopeCursor {
			cursor = pickerCursorStyle.Render("> ")
		}
		fmt.Fprintf(&b, "%s%s\n", cursor, scopeTitle.String(string(s)))
	}
	b.WriteString(pickerHelpStyle.Render("enter confirm · esc back · q quit"))
	return b.String()
}

// Result returns the picker outcome after the program finishes.
func (m ToolPickerModel) Result() ToolPickerResult {
	return m.result
}

// RunToolPicker runs the picker as a standalone program and returns the
// user's selection.
func RunToolPicker(detections []engine.ToolDetection) (ToolPickerResult, error) {
	program := tea.NewProgram(NewToolPicker(detections))
	final, err := program.Run()
	if err != nil {
		return ToolPickerResult{}, fmt.Errorf("tool picker failed: %w", err)
	}
	model, ok := final.(ToolPickerModel)
	if !ok {
		return ToolPickerResult{}, nil
	}
	return model.Result(), nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
