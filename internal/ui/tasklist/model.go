package tasklist

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/taskstate"
	"github.com/nhle/taskboard/internal/theme"
)

// Model is the main task list view component. It renders whatever
// taskstate.State it is given and owns only cursor position.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	stats   taskstate.Stats
	filter  taskstate.Filter
	loading bool
	width   int
	height  int
}

// New creates a new task list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, listHeight(height))
	l.Title = "Tasks"
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		filter: taskstate.FilterAll,
		width:  width,
		height: height,
	}
}

// SetState shows the visible subset of s and recomputes the counters.
// The cursor stays on the same task when it is still visible.
func (m *Model) SetState(s taskstate.State) tea.Cmd {
	selectedID := int64(-1)
	if t, ok := m.Selected(); ok {
		selectedID = t.ID
	}

	visible := s.Visible()
	items := make([]list.Item, len(visible))
	cursor := 0
	for i, t := range visible {
		items[i] = TaskItem{Task: t}
		if t.ID == selectedID {
			cursor = i
		}
	}

	m.stats = taskstate.Counts(s.Tasks)
	m.filter = s.Filter
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// SetLoading toggles the loading placeholder.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return model.Task{}, false
	}
	return item.Task, true
}

// Update handles cursor movement.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the counters row followed by the list.
func (m Model) View() string {
	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = m.emptyView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.statsView(), "", body)
}

func (m Model) emptyView() string {
	msg := "No tasks yet. Press n to add one."
	switch {
	case m.loading:
		msg = "Loading tasks..."
	case m.stats.Total > 0:
		msg = fmt.Sprintf("No %s tasks.", strings.ToLower(m.filter.Label()))
	}
	return theme.HelpStyle.PaddingLeft(2).Render(msg)
}

func (m Model) statsView() string {
	badges := make([]string, 0, len(taskstate.Filters))
	for _, f := range taskstate.Filters {
		label := fmt.Sprintf("%s %d", f.Label(), m.stats.Count(f))
		style := theme.StatBadgeStyle
		if f == m.filter {
			style = theme.ActiveStatBadgeStyle
		}
		if f != taskstate.FilterAll {
			style = style.Foreground(theme.StatusStyle(model.Status(f)).GetForeground())
		}
		badges = append(badges, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, badges...)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, listHeight(height))
}

// listHeight leaves room for the counters row and a spacer.
func listHeight(height int) int {
	h := height - 2
	if h < 1 {
		return 1
	}
	return h
}
