package store

import (
	"context"

	"github.com/nhle/taskboard/internal/model"
)

// Store is the persistence gateway for tasks. Every method runs a single
// statement; callers treat any returned error as an internal failure.
type Store interface {
	// Create inserts a task and returns it as stored, with its new ID,
	// sanitized fields and creation timestamps.
	Create(ctx context.Context, in model.NewTask) (model.Task, error)

	// List returns all tasks, newest first.
	List(ctx context.Context) ([]model.Task, error)

	// GetByID returns the task with the given ID, or nil if none exists.
	GetByID(ctx context.Context, id int64) (*model.Task, error)

	// Update overwrites the title, description and status of task.ID and
	// refreshes its updated_at. It returns the stored record, or nil if no
	// row matched.
	Update(ctx context.Context, task model.Task) (*model.Task, error)

	// Delete removes a task and reports whether a row was removed.
	Delete(ctx context.Context, id int64) (bool, error)

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
