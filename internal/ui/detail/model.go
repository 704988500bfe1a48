package detail

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// EditMsg asks the parent to open the edit form for the shown task.
type EditMsg struct {
	Task model.Task
}

// Model is the task detail view component.
type Model struct {
	task     *model.Task
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Edit):
			if m.task != nil {
				t := *m.task
				return m, func() tea.Msg { return EditMsg{Task: t} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	placeholder := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return placeholder.Render("Loading task...")
	}
	if m.task == nil {
		return placeholder.Render("No task selected")
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.task == nil {
		return ""
	}

	task := m.task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(html.UnescapeString(task.Title)))
	sections = append(sections, theme.StatusStyle(task.Status).Render(task.Status.Label()))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf("%s        %s",
		metaStyle.Render("ID:"), valStyle.Render(fmt.Sprint(task.ID))))
	if !task.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s   %s",
			metaStyle.Render("Created:"),
			valStyle.Render(task.CreatedAt.Local().Format("2006-01-02 15:04"))))
	}
	if !task.UpdatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s   %s",
			metaStyle.Render("Updated:"),
			valStyle.Render(task.UpdatedAt.Local().Format("2006-01-02 15:04"))))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	descHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sections = append(sections, descHeaderStyle.Render("Description"))

	body := renderMarkdown(html.UnescapeString(task.Description), min(m.width-4, 100))
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetTask updates the task being displayed and re-renders the content.
func (m *Model) SetTask(task *model.Task) {
	m.task = task
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Task returns the task being displayed.
func (m Model) Task() (model.Task, bool) {
	if m.task == nil {
		return model.Task{}, false
	}
	return *m.task, true
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
