package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/taskboard/internal/model"
)

// Clock returns the current time. Tests substitute a fixed sequence.
type Clock func() time.Time

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now Clock
}

var _ Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(c Clock) Option {
	return func(s *SQLiteStore) { s.now = c }
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection, so pin the pool to one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging sqlite db: %w", err)
	}
	return nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const taskColumns = "id, title, description, status, created_at, updated_at"

// Create inserts a new task. Client-supplied timestamps do not exist on
// the input; both are taken from the store clock.
func (s *SQLiteStore) Create(ctx context.Context, in model.NewTask) (model.Task, error) {
	now := s.now()
	task := model.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Status == "" {
		task.Status = model.DefaultStatus
	}
	sanitizeTask(&task)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		task.Title, task.Description, task.Status, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}

	task.ID, err = result.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("reading new task id: %w", err)
	}

	return task, nil
}

// List returns every task ordered by creation time, newest first. Ties
// are broken by ID so the order is stable.
func (s *SQLiteStore) List(ctx context.Context) ([]model.Task, error) {
	tasks := []model.Task{}
	err := s.db.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a single task. It returns (nil, nil) when the ID is
// unknown.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return &task, nil
}

// Update overwrites the mutable fields of an existing task. The caller is
// expected to have merged a partial change onto the current record.
func (s *SQLiteStore) Update(ctx context.Context, task model.Task) (*model.Task, error) {
	task.UpdatedAt = s.now()
	sanitizeTask(&task)

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		task.Title, task.Description, task.Status, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating task %d: %w", task.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating task %d: %w", task.ID, err)
	}
	if rows == 0 {
		return nil, nil
	}
	return &task, nil
}

// Delete removes a task by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting task %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting task %d: %w", id, err)
	}
	return rows > 0, nil
}
