// Package taskstate holds the client's in-memory task list and derives
// the filtered view and counts shown to the user.
package taskstate

import "github.com/nhle/taskboard/internal/model"

// Filter selects which tasks are visible.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterPending    Filter = Filter(model.StatusPending)
	FilterInProgress Filter = Filter(model.StatusInProgress)
	FilterCompleted  Filter = Filter(model.StatusCompleted)
)

// Filters lists the filters in the order the UI cycles through them.
var Filters = []Filter{FilterAll, FilterPending, FilterInProgress, FilterCompleted}

// Next returns the filter after f, wrapping around.
func (f Filter) Next() Filter {
	for i, cur := range Filters {
		if cur == f {
			return Filters[(i+1)%len(Filters)]
		}
	}
	return FilterAll
}

// Label returns the filter's display name.
func (f Filter) Label() string {
	if f == FilterAll {
		return "All"
	}
	return model.Status(f).Label()
}

// Matches reports whether t is visible under f.
func (f Filter) Matches(t model.Task) bool {
	return f == FilterAll || model.Status(f) == t.Status
}

// State is the client's copy of the task list. Tasks is ordered newest
// first, matching the server's list order.
type State struct {
	Tasks  []model.Task
	Filter Filter
}

// New returns an empty state showing all tasks.
func New() State {
	return State{Tasks: []model.Task{}, Filter: FilterAll}
}

// Event is a change applied by Reduce.
type Event interface {
	isEvent()
}

// Loaded replaces the whole list with a fresh server copy.
type Loaded struct{ Tasks []model.Task }

// Created adds a task the server just created.
type Created struct{ Task model.Task }

// Updated replaces the fields of an existing task.
type Updated struct{ Task model.Task }

// Deleted removes a task.
type Deleted struct{ ID int64 }

// FilterChanged switches the visible subset.
type FilterChanged struct{ Filter Filter }

func (Loaded) isEvent()        {}
func (Created) isEvent()       {}
func (Updated) isEvent()       {}
func (Deleted) isEvent()       {}
func (FilterChanged) isEvent() {}

// Reduce returns the state after ev. The input state is not modified.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case Loaded:
		s.Tasks = append([]model.Task{}, ev.Tasks...)

	case Created:
		tasks := make([]model.Task, 0, len(s.Tasks)+1)
		tasks = append(tasks, ev.Task)
		s.Tasks = append(tasks, s.Tasks...)

	case Updated:
		tasks := make([]model.Task, len(s.Tasks))
		copy(tasks, s.Tasks)
		for i := range tasks {
			if tasks[i].ID == ev.Task.ID {
				tasks[i] = merge(tasks[i], ev.Task)
				break
			}
		}
		s.Tasks = tasks

	case Deleted:
		tasks := make([]model.Task, 0, len(s.Tasks))
		for _, t := range s.Tasks {
			if t.ID != ev.ID {
				tasks = append(tasks, t)
			}
		}
		s.Tasks = tasks

	case FilterChanged:
		s.Filter = ev.Filter
	}
	return s
}

// merge overlays the editable fields of next onto prev. Timestamps are
// kept when next does not carry them.
func merge(prev, next model.Task) model.Task {
	prev.Title = next.Title
	prev.Description = next.Description
	prev.Status = next.Status
	if !next.CreatedAt.IsZero() {
		prev.CreatedAt = next.CreatedAt
	}
	if !next.UpdatedAt.IsZero() {
		prev.UpdatedAt = next.UpdatedAt
	}
	return prev
}

// Visible returns the tasks that pass the current filter, in list order.
func (s State) Visible() []model.Task {
	out := make([]model.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if s.Filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Find returns the task with the given ID.
func (s State) Find(id int64) (model.Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Stats are aggregate counts over the full list.
type Stats struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
}

// Count returns the number of tasks matching f.
func (st Stats) Count(f Filter) int {
	switch f {
	case FilterPending:
		return st.Pending
	case FilterInProgress:
		return st.InProgress
	case FilterCompleted:
		return st.Completed
	default:
		return st.Total
	}
}

// Counts tallies tasks by status. It ignores the active filter.
func Counts(tasks []model.Task) Stats {
	st := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case model.StatusPending:
			st.Pending++
		case model.StatusInProgress:
			st.InProgress++
		case model.StatusCompleted:
			st.Completed++
		}
	}
	return st
}
