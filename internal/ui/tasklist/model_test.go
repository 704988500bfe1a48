package tasklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/taskstate"
)

func loaded(tasks ...model.Task) taskstate.State {
	return taskstate.Reduce(taskstate.New(), taskstate.Loaded{Tasks: tasks})
}

func TestSetStateShowsVisibleTasksAndCounts(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	s := loaded(
		model.Task{ID: 2, Title: "Write report", Status: model.StatusInProgress},
		model.Task{ID: 1, Title: "Buy milk", Status: model.StatusPending},
	)
	s = taskstate.Reduce(s, taskstate.FilterChanged{Filter: taskstate.FilterPending})

	m.SetState(s)
	view := m.View()

	assert.Contains(t, view, "Buy milk")
	assert.NotContains(t, view, "Write report")
	assert.Contains(t, view, "All 2")
	assert.Contains(t, view, "Pending 1")
	assert.Contains(t, view, "In progress 1")

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(1), sel.ID)
}

func TestSetStateKeepsCursorOnTask(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	s := loaded(
		model.Task{ID: 2, Title: "B", Status: model.StatusPending},
		model.Task{ID: 1, Title: "A", Status: model.StatusPending},
	)
	m.SetState(s)
	m.list.Select(1)

	s = taskstate.Reduce(s, taskstate.Created{Task: model.Task{ID: 3, Title: "C", Status: model.StatusPending}})
	m.SetState(s)

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(1), sel.ID)
}

func TestEmptyViews(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetLoading(true)
	assert.Contains(t, m.View(), "Loading tasks")

	m.SetLoading(false)
	m.SetState(taskstate.New())
	assert.Contains(t, m.View(), "No tasks yet")

	s := loaded(model.Task{ID: 1, Title: "A", Status: model.StatusPending})
	s = taskstate.Reduce(s, taskstate.FilterChanged{Filter: taskstate.FilterCompleted})
	m.SetState(s)
	assert.Contains(t, m.View(), "No completed tasks")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "", relativeTime(time.Time{}, now))
	assert.Equal(t, "just now", relativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", relativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", relativeTime(now.Add(-48*time.Hour), now))
	assert.Equal(t, "Apr 01", relativeTime(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), now))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
