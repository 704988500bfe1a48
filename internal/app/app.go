package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/client"
	"github.com/nhle/taskboard/internal/keys"
	appsync "github.com/nhle/taskboard/internal/sync"
	"github.com/nhle/taskboard/internal/taskstate"
	"github.com/nhle/taskboard/internal/ui"
	"github.com/nhle/taskboard/internal/ui/command"
	"github.com/nhle/taskboard/internal/ui/confirm"
	"github.com/nhle/taskboard/internal/ui/detail"
	helpview "github.com/nhle/taskboard/internal/ui/help"
	"github.com/nhle/taskboard/internal/ui/taskform"
	"github.com/nhle/taskboard/internal/ui/tasklist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewForm
	ViewConfirm
	ViewHelp
	ViewCommand
)

// DefaultTimeout bounds each request made by the UI.
const DefaultTimeout = 10 * time.Second

// Model is the root Bubble Tea model. It owns the client-side task state
// and routes messages between the views.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	api          TaskAPI
	timeout      time.Duration
	keys         *keys.KeyMap

	state      taskstate.State
	loading    bool
	loadFailed bool
	banner     string
	newCount   int
	poller     *appsync.Poller

	taskList    tasklist.Model
	detail      detail.Model
	form        taskform.Model
	confirm     confirm.Model
	helpView    helpview.Model
	commandView command.Model
	ready       bool
}

// Option configures the root model.
type Option func(*Model)

// WithRefreshInterval reloads the list in the background every d.
// Zero disables background refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.poller = appsync.New(m.api, d, m.timeout)
		}
	}
}

// New creates the root model. A non-positive timeout uses DefaultTimeout.
func New(api TaskAPI, timeout time.Duration, opts ...Option) Model {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	k := keys.DefaultKeyMap()
	list := tasklist.New(k, 80, 24)
	list.SetLoading(true)

	m := Model{
		currentView: ViewList,
		api:         api,
		timeout:     timeout,
		keys:        k,
		state:       taskstate.New(),
		loading:     true,
		taskList:    list,
		detail:      detail.New(k, 80, 24),
		form:        taskform.New(80, 24),
		confirm:     confirm.New(80),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init fetches the session token; the list is loaded once it arrives.
func (m Model) Init() tea.Cmd {
	return m.initialize()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w := m.layout.ContentWidth()
		// One line is kept for the error banner.
		h := max(m.layout.ContentHeight()-1, 0)
		m.taskList.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.form.SetSize(w, h)
		m.confirm.SetSize(w)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case initializedMsg:
		if msg.err != nil {
			m.banner = errorMessage("start a session", msg.err)
		}
		load := m.startLoad()
		if m.poller == nil {
			return m, load
		}
		return m, tea.Batch(load, m.poller.Start())

	case appsync.ResultMsg:
		next := m.poller.WaitForNextResult()
		if msg.Error != nil {
			// Keep the current list; only report when nothing else is shown.
			if m.banner == "" {
				m.banner = errorMessage("refresh tasks", msg.Error)
			}
			return m, next
		}
		if m.loadFailed {
			m.loadFailed = false
			m.banner = ""
		}
		m.newCount += msg.NewTaskCount
		return m, tea.Batch(m.apply(taskstate.Loaded{Tasks: msg.Tasks}), next)

	case tasksLoadedMsg:
		m.loading = false
		m.taskList.SetLoading(false)
		if msg.err != nil {
			m.loadFailed = true
			m.banner = errorMessage("load tasks", msg.err) + " (press r to retry)"
			return m, nil
		}
		m.loadFailed = false
		m.banner = ""
		return m, m.apply(taskstate.Loaded{Tasks: msg.tasks})

	case taskLoadedMsg:
		if m.currentView != ViewDetail {
			return m, nil
		}
		if msg.err != nil {
			m.currentView = ViewList
			m.banner = errorMessage("open task", msg.err)
			return m, m.reloadIfGone(msg.err)
		}
		task := msg.task
		m.detail.SetTask(&task)
		return m, m.apply(taskstate.Updated{Task: task})

	case taskCreatedMsg:
		if msg.err != nil {
			m.banner = errorMessage("create task", msg.err)
			return m, nil
		}
		m.banner = ""
		return m, m.apply(taskstate.Created{Task: msg.task})

	case taskUpdatedMsg:
		if msg.err != nil {
			m.banner = errorMessage("update task", msg.err)
			return m, m.reloadIfGone(msg.err)
		}
		m.banner = ""
		return m, m.apply(taskstate.Updated{Task: msg.task})

	case taskDeletedMsg:
		if msg.err != nil {
			m.banner = errorMessage("delete task", msg.err)
			return m, m.reloadIfGone(msg.err)
		}
		m.banner = ""
		return m, m.apply(taskstate.Deleted{ID: msg.id})

	case taskform.CreateSubmittedMsg:
		m.currentView = ViewList
		return m, m.createTask(msg.Input)

	case taskform.EditSubmittedMsg:
		m.currentView = ViewList
		return m, m.updateTask(msg.ID, msg.Patch)

	case taskform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case confirm.ConfirmedMsg:
		m.currentView = ViewList
		return m, m.deleteTask(msg.ID)

	case confirm.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.EditMsg:
		m.previousView = ViewDetail
		m.currentView = ViewForm
		return m, m.form.StartEdit(msg.Task)

	case command.CommandMsg:
		m.currentView = ViewList
		return m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleKey processes keys that belong to the root model rather than the
// active view.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch m.currentView {
	case ViewHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back) {
			m.currentView = m.previousView
			return nil, true
		}
		return nil, false

	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewList
			return nil, true
		}
		return nil, false

	case ViewList:
	default:
		return nil, false
	}

	m.newCount = 0

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit(), true

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Command):
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Refresh):
		return m.startLoad(), true

	case key.Matches(msg, m.keys.CycleFilter):
		return m.apply(taskstate.FilterChanged{Filter: m.state.Filter.Next()}), true

	case key.Matches(msg, m.keys.FilterAll):
		return m.apply(taskstate.FilterChanged{Filter: taskstate.FilterAll}), true

	case key.Matches(msg, m.keys.New):
		m.previousView = ViewList
		m.currentView = ViewForm
		return m.form.StartCreate(), true

	case key.Matches(msg, m.keys.Back):
		m.banner = ""
		return nil, true
	}

	task, ok := m.taskList.Selected()
	if !ok {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Open):
		m.currentView = ViewDetail
		m.detail.SetTask(&task)
		m.detail.SetLoading(true)
		return m.loadTask(task.ID), true

	case key.Matches(msg, m.keys.Edit):
		m.previousView = ViewList
		m.currentView = ViewForm
		return m.form.StartEdit(task), true

	case key.Matches(msg, m.keys.CycleStatus):
		return m.cycleStatus(task), true

	case key.Matches(msg, m.keys.Delete):
		m.currentView = ViewConfirm
		return m.confirm.Start(task), true
	}

	return nil, false
}

// executeCommand runs a command typed into the palette.
func (m Model) executeCommand(input string) (tea.Model, tea.Cmd) {
	parsed, err := command.Parse(input)
	if err != nil {
		m.banner = err.Error()
		return m, nil
	}

	switch parsed.Action {
	case command.ActionRefresh:
		return m, m.startLoad()
	case command.ActionNew:
		m.previousView = ViewList
		m.currentView = ViewForm
		return m, m.form.StartCreate()
	case command.ActionFilter:
		return m, m.apply(taskstate.FilterChanged{Filter: parsed.Filter})
	case command.ActionQuit:
		return m, m.quit()
	}
	return m, nil
}

func (m Model) quit() tea.Cmd {
	if m.poller != nil {
		m.poller.Stop()
	}
	return tea.Quit
}

// apply reduces ev into the state and refreshes the list view.
func (m *Model) apply(ev taskstate.Event) tea.Cmd {
	m.state = taskstate.Reduce(m.state, ev)
	return m.taskList.SetState(m.state)
}

func (m *Model) startLoad() tea.Cmd {
	m.loading = true
	m.taskList.SetLoading(true)
	return m.loadTasks()
}

// reloadIfGone refreshes the list after the server reported a task
// missing, so the stale row disappears.
func (m *Model) reloadIfGone(err error) tea.Cmd {
	if client.IsNotFound(err) {
		return m.startLoad()
	}
	return nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewForm:
		m.form, cmd = m.form.Update(msg)
	case ViewConfirm:
		m.confirm, cmd = m.confirm.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Taskboard"
	if m.newCount > 0 {
		title = fmt.Sprintf("Taskboard [%d new]", m.newCount)
	}
	header := m.layout.RenderHeader(title, m.headerStatus())
	banner := ""
	if m.banner != "" {
		banner = m.layout.RenderBanner(m.banner)
	}
	content := lipgloss.JoinVertical(lipgloss.Left, banner, m.renderContent())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDetail:
		return m.detail.View()
	case ViewForm:
		return m.form.View()
	case ViewConfirm:
		return m.confirm.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return lipgloss.JoinVertical(lipgloss.Left, m.commandView.View(), m.taskList.View())
	default:
		return m.taskList.View()
	}
}

func (m Model) headerStatus() string {
	switch {
	case m.loading:
		return "loading..."
	case m.loadFailed:
		return "offline"
	}
	visible := len(m.state.Visible())
	if m.state.Filter == taskstate.FilterAll {
		return fmt.Sprintf("%d tasks", visible)
	}
	return fmt.Sprintf("%s: %d of %d", m.state.Filter.Label(), visible, len(m.state.Tasks))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter run | esc back"
	case ViewDetail:
		return "esc back | e edit | j/k scroll"
	case ViewForm:
		return "enter next | esc cancel"
	case ViewConfirm:
		return "←/→ choose | enter confirm | esc cancel"
	default:
		return "q quit | ? help | n new | e edit | s status | d delete | tab filter | r reload"
	}
}
