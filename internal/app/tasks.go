package app

import (
	"context"
	"errors"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/client"
	"github.com/nhle/taskboard/internal/model"
)

// TaskAPI is the remote task service the UI drives. *client.Client
// satisfies it.
type TaskAPI interface {
	Initialize(ctx context.Context) error
	ListTasks(ctx context.Context) ([]model.Task, error)
	GetTask(ctx context.Context, id int64) (model.Task, error)
	CreateTask(ctx context.Context, in model.NewTask) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// initializedMsg is sent once the session token has been fetched.
type initializedMsg struct{ err error }

// tasksLoadedMsg carries a fresh copy of the task list.
type tasksLoadedMsg struct {
	tasks []model.Task
	err   error
}

// taskLoadedMsg carries a single task for the detail view.
type taskLoadedMsg struct {
	task model.Task
	err  error
}

// taskCreatedMsg is sent after a create request returns.
type taskCreatedMsg struct {
	task model.Task
	err  error
}

// taskUpdatedMsg is sent after an update request returns.
type taskUpdatedMsg struct {
	task model.Task
	err  error
}

// taskDeletedMsg is sent after a delete request returns.
type taskDeletedMsg struct {
	id  int64
	err error
}

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

// initialize obtains the CSRF token for this session.
func (m Model) initialize() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		return initializedMsg{err: m.api.Initialize(ctx)}
	}
}

// loadTasks fetches the full list from the server.
func (m Model) loadTasks() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		tasks, err := m.api.ListTasks(ctx)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

// loadTask fetches one task for the detail view.
func (m Model) loadTask(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		task, err := m.api.GetTask(ctx, id)
		return taskLoadedMsg{task: task, err: err}
	}
}

// createTask sends a new task to the server.
func (m Model) createTask(in model.NewTask) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		task, err := m.api.CreateTask(ctx, in)
		return taskCreatedMsg{task: task, err: err}
	}
}

// updateTask sends a patch for an existing task.
func (m Model) updateTask(id int64, patch model.TaskPatch) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		task, err := m.api.UpdateTask(ctx, id, patch)
		return taskUpdatedMsg{task: task, err: err}
	}
}

// cycleStatus moves a task to the next status.
func (m Model) cycleStatus(task model.Task) tea.Cmd {
	next := task.Status.Next()
	return m.updateTask(task.ID, model.TaskPatch{Status: &next})
}

// deleteTask removes a task on the server.
func (m Model) deleteTask(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		return taskDeletedMsg{id: id, err: m.api.DeleteTask(ctx, id)}
	}
}

// errorMessage turns a failed request into a banner line.
func errorMessage(action string, err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadRequest:
			return "Could not " + action + ": " + apiErr.Message
		case http.StatusNotFound:
			return "Could not " + action + ": the task no longer exists"
		case http.StatusForbidden:
			return "Could not " + action + ": session expired, please try again"
		default:
			return "Could not " + action + ": server error"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Could not " + action + ": the server did not respond"
	}
	return "Could not " + action + ": server unreachable"
}
