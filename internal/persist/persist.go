// Package persist serializes the task collection to a key-value store.
package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dori/dhyan/internal/model"
)

// Storage keys
const (
	TasksKey    = "dhyan-tasks"
	LastDateKey = "dhyan-last-date"
)

// KV is an opaque byte store. Get returns nil, nil for a missing key.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// PersistenceError wraps a failed read or write against the KV store
type PersistenceError struct {
	Op  string // "read", "decode", "encode" or "write"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Adapter reads and writes the task collection and the last-active date
type Adapter struct {
	kv     KV
	logger *slog.Logger
}

// New creates an adapter over kv. A nil logger discards output.
func New(kv KV, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{kv: kv, logger: logger}
}

// LoadTasks returns the persisted tasks ordered by their order field.
// It never fails: missing, unreadable or corrupt data yields an empty collection.
func (a *Adapter) LoadTasks() []model.Task {
	data, err := a.kv.Get(TasksKey)
	if err != nil {
		a.logger.Warn("loading tasks failed, starting empty",
			"err", &PersistenceError{Op: "read", Key: TasksKey, Err: err})
		return []model.Task{}
	}
	if len(data) == 0 {
		return []model.Task{}
	}

	tasks, err := Decode(data)
	if err != nil {
		a.logger.Warn("stored tasks are corrupt, starting empty",
			"err", &PersistenceError{Op: "decode", Key: TasksKey, Err: err})
		return []model.Task{}
	}

	tasks, repairs := Normalize(tasks)
	for _, r := range repairs {
		a.logger.Warn("repaired stored task", "task", r.TaskID, "repair", r.Reason)
	}
	return tasks
}

// SaveTasks writes the full collection
func (a *Adapter) SaveTasks(tasks []model.Task) error {
	data, err := Encode(tasks)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: TasksKey, Err: err}
	}
	if err := a.kv.Set(TasksKey, data); err != nil {
		return &PersistenceError{Op: "write", Key: TasksKey, Err: err}
	}
	return nil
}

// LastDate returns the persisted last-active calendar date, or "" if unset
func (a *Adapter) LastDate() (string, error) {
	data, err := a.kv.Get(LastDateKey)
	if err != nil {
		return "", &PersistenceError{Op: "read", Key: LastDateKey, Err: err}
	}
	return string(data), nil
}

// SetLastDate persists the last-active calendar date
func (a *Adapter) SetLastDate(date string) error {
	if err := a.kv.Set(LastDateKey, []byte(date)); err != nil {
		return &PersistenceError{Op: "write", Key: LastDateKey, Err: err}
	}
	return nil
}

// Encode serializes tasks as a JSON array. Nil encodes as [].
func Encode(tasks []model.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	return json.Marshal(tasks)
}

// Decode parses a JSON array of tasks; timestamps are ISO-8601 strings or null
func Decode(data []byte) ([]model.Task, error) {
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// Repair describes a fix applied to loaded data
type Repair struct {
	TaskID string
	Reason string
}

// Normalize restores the collection invariants on data written by older or
// foreign versions: known statuses, a single active task, completedAt only
// after startedAt, and dense zero-based order.
func Normalize(tasks []model.Task) ([]model.Task, []Repair) {
	var repairs []Repair

	for i := range tasks {
		t := &tasks[i]
		if !t.Status.Valid() {
			repairs = append(repairs, Repair{t.ID, fmt.Sprintf("unknown status %q reset to pending", t.Status)})
			t.Status = model.StatusPending
			t.StartedAt = nil
			t.CompletedAt = nil
		}
		if t.Status == model.StatusCompleted && t.CompletedAt == nil {
			repairs = append(repairs, Repair{t.ID, "completed without completedAt"})
			completed := t.CreatedAt
			if t.StartedAt != nil {
				completed = *t.StartedAt
			}
			t.CompletedAt = &completed
		}
		if t.CompletedAt != nil && t.StartedAt == nil {
			repairs = append(repairs, Repair{t.ID, "completedAt without startedAt"})
			started := *t.CompletedAt
			t.StartedAt = &started
		}
		if t.Status != model.StatusCompleted && t.CompletedAt != nil {
			repairs = append(repairs, Repair{t.ID, "completedAt on unfinished task cleared"})
			t.CompletedAt = nil
		}
		if t.Status == model.StatusInProgress && t.StartedAt == nil {
			repairs = append(repairs, Repair{t.ID, "in-progress without startedAt demoted"})
			t.Status = model.StatusPending
		}
	}

	// Keep only the most recently started active task
	active := -1
	for i := range tasks {
		if !tasks[i].IsActive() {
			continue
		}
		if active == -1 {
			active = i
			continue
		}
		demote := i
		if tasks[i].StartedAt.After(*tasks[active].StartedAt) {
			demote = active
			active = i
		}
		repairs = append(repairs, Repair{tasks[demote].ID, "second active task demoted"})
		tasks[demote].Status = model.StatusPending
		tasks[demote].StartedAt = nil
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	for i := range tasks {
		if tasks[i].Order != i {
			repairs = append(repairs, Repair{tasks[i].ID, fmt.Sprintf("order %d renumbered to %d", tasks[i].Order, i)})
			tasks[i].Order = i
		}
	}

	return tasks, repairs
}
