package model

import (
	"time"
)

// Status represents the current state of a task
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known lifecycle states
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// String returns a display label for the status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in progress"
	case StatusCompleted:
		return "completed"
	default:
		return string(s)
	}
}

// Field limits
const (
	MaxTitleLength       = 50
	MaxDescriptionLength = 200
	MinEstimate          = 15  // Minutes
	MaxEstimate          = 480 // Minutes
	DefaultEstimate      = 30  // Minutes
)

// Task represents a unit of work for the day
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	EstimatedTime int        `json:"estimatedTime"` // Minutes
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Order         int        `json:"order"`
}

// IsActive returns true if the task is the one currently being worked on
func (t *Task) IsActive() bool {
	return t.Status == StatusInProgress
}

// IsCompleted returns true if the task reached its terminal state
func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Duration returns the time actually spent on a completed task.
// Zero when either timestamp is missing.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	d := t.CompletedAt.Sub(*t.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Estimate returns the estimated time as a duration
func (t *Task) Estimate() time.Duration {
	return time.Duration(t.EstimatedTime) * time.Minute
}

// Clone returns a deep copy; timestamp pointers are not shared
func (t Task) Clone() Task {
	if t.StartedAt != nil {
		started := *t.StartedAt
		t.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		t.CompletedAt = &completed
	}
	return t
}

// TaskPatch holds the fields that may be edited after creation.
// Status, timestamps and order only change through lifecycle operations.
type TaskPatch struct {
	Title         *string
	Description   *string
	EstimatedTime *int
}

// IsEmpty returns true if the patch changes nothing
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.EstimatedTime == nil
}

// Apply returns a copy of t with the patch merged in
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.EstimatedTime != nil {
		t.EstimatedTime = *p.EstimatedTime
	}
	return t
}
