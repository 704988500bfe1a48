package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// DefaultStatus is assigned when a task is created without a status.
const DefaultStatus = StatusPending

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Field limits, counted in characters of the input as submitted. Stored
// values are HTML-escaped and may be longer: 255 "<" characters are stored
// as 1020.
const (
	MaxTitleLen       = 255
	MaxDescriptionLen = 1000
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Label returns a human-readable name for the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Next returns the status that follows s in the pending → in_progress →
// completed cycle, wrapping back to pending.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// Task is a single to-do item.
type Task struct {
	// ID is assigned by the store on creation and never reused.
	ID int64 `json:"id" db:"id"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	Status      Status `json:"status" db:"status"`

	// CreatedAt and UpdatedAt are set by the store clock. UpdatedAt is
	// refreshed on every successful update.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewTask is the input for creating a task.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status,omitempty"`
}

// TaskPatch carries a partial update. A nil field is left unchanged.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil
}

// Apply copies the present fields of p onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

// ValidationError describes an input field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks a create input and fills in defaults.
func (n *NewTask) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if err := checkLengths(&n.Title, &n.Description); err != nil {
		return err
	}
	if n.Status == "" {
		n.Status = DefaultStatus
	}
	if !n.Status.Valid() {
		return invalidStatus()
	}
	return nil
}

// Validate checks the fields present in a patch.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &ValidationError{Field: "title", Message: "title cannot be empty"}
	}
	if err := checkLengths(p.Title, p.Description); err != nil {
		return err
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalidStatus()
	}
	return nil
}

func checkLengths(title, description *string) error {
	if title != nil && utf8.RuneCountInString(*title) > MaxTitleLen {
		return &ValidationError{Field: "title", Message: "title must be at most 255 characters"}
	}
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLen {
		return &ValidationError{
			Field:   "description",
			Message: "description must be at most 1000 characters",
		}
	}
	return nil
}

func invalidStatus() error {
	return &ValidationError{
		Field:   "status",
		Message: "status must be one of pending, in_progress, completed",
	}
}
