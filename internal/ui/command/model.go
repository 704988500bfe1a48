package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/taskstate"
	"github.com/nhle/taskboard/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Action is a parsed palette command.
type Action int

const (
	ActionNone Action = iota
	ActionRefresh
	ActionNew
	ActionFilter
	ActionQuit
)

// Parsed is the result of Parse.
type Parsed struct {
	Action Action
	Filter taskstate.Filter
}

// Parse interprets a palette command. Unknown input returns an error.
func Parse(cmd string) (Parsed, error) {
	fields := strings.Fields(strings.ToLower(cmd))
	if len(fields) == 0 {
		return Parsed{}, nil
	}

	switch fields[0] {
	case "refresh", "reload":
		return Parsed{Action: ActionRefresh}, nil
	case "new", "add":
		return Parsed{Action: ActionNew}, nil
	case "quit", "q":
		return Parsed{Action: ActionQuit}, nil
	case "filter":
		if len(fields) < 2 {
			return Parsed{}, fmt.Errorf("filter needs one of: all, pending, in_progress, completed")
		}
		for _, f := range taskstate.Filters {
			if string(f) == fields[1] {
				return Parsed{Action: ActionFilter, Filter: f}, nil
			}
		}
		return Parsed{}, fmt.Errorf("unknown filter %q", fields[1])
	case "all", "pending", "in_progress", "completed":
		return Parse("filter " + fields[0])
	}
	return Parsed{}, fmt.Errorf("unknown command %q", fields[0])
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, new, filter pending, quit..."
	ti.Prompt = ": "
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Focus resets the input and gives it keyboard focus.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	return m.input.Focus()
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
		cmd := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		return m, func() tea.Msg { return CommandMsg(cmd) }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Command"), m.input.View())

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}
