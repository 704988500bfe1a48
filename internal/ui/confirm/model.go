// Package confirm is the yes/no dialog shown before a task is deleted.
package confirm

import (
	"fmt"
	"html"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// ConfirmedMsg is dispatched when the user accepts the deletion.
type ConfirmedMsg struct {
	ID int64
}

// CancelMsg is dispatched when the user declines or aborts.
type CancelMsg struct{}

type bindings struct {
	ok bool
}

// Model wraps a huh confirm field.
type Model struct {
	form   *huh.Form
	b      *bindings
	taskID int64
	width  int
}

// New creates a confirm dialog model.
func New(width int) Model {
	return Model{b: &bindings{}, width: width}
}

// Start prepares the dialog for deleting task.
func (m *Model) Start(task model.Task) tea.Cmd {
	m.taskID = task.ID
	m.b.ok = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", html.UnescapeString(task.Title))).
				Description("This cannot be undone.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(&m.b.ok),
		),
	).WithWidth(max(min(m.width-4, 60), 20))
	return m.form.Init()
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.result()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

func (m Model) result() tea.Cmd {
	if !m.b.ok {
		return func() tea.Msg { return CancelMsg{} }
	}
	id := m.taskID
	return func() tea.Msg { return ConfirmedMsg{ID: id} }
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return theme.PanelStyle.Render(m.form.View())
}

// SetSize updates the dialog width.
func (m *Model) SetSize(width int) {
	m.width = width
}
