// Package store holds the authoritative in-memory task collection and
// enforces the task lifecycle.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dori/dhyan/internal/model"
	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("task not found")
	ErrTaskCompleted      = errors.New("task is already completed")
	ErrNotStarted         = errors.New("task has not been started")
	ErrInvalidOrder       = errors.New("order must list every task exactly once")
	ErrInvariantViolation = errors.New("task invariant violated")
)

// Persister is the write-through target of the store
type Persister interface {
	SaveTasks(tasks []model.Task) error
}

// Store is the single owner of the task collection.
// All mutations persist the full snapshot before returning.
type Store struct {
	mu      sync.Mutex
	tasks   []model.Task // Sorted by Order, Order == index
	persist Persister
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger

	dirty      bool
	persistErr error

	listeners  map[int]func(Event)
	nextListen int
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides task id generation
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the logger used for persistence diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a store seeded with tasks. The seed is assumed to be
// normalized (see persist.Normalize); it is not written back.
func New(p Persister, tasks []model.Task, opts ...Option) *Store {
	s := &Store{
		persist:   p,
		now:       func() time.Time { return time.Now().Round(0) },
		newID:     uuid.NewString,
		logger:    slog.New(slog.DiscardHandler),
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tasks = make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		s.tasks = append(s.tasks, t.Clone())
	}
	sort.SliceStable(s.tasks, func(i, j int) bool { return s.tasks[i].Order < s.tasks[j].Order })
	s.renumber()
	return s
}

// List returns a copy of all tasks in display order
func (s *Store) List() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Len returns the number of tasks
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Get returns a copy of the task with id
func (s *Store) Get(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, ErrNotFound
	}
	return s.tasks[i].Clone(), nil
}

// Active returns the in-progress task, if any
func (s *Store) Active() (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.IsActive() {
			return t.Clone(), true
		}
	}
	return model.Task{}, false
}

// Add creates a pending task at the end of the list and returns its id
func (s *Store) Add(title, description string, estimate int) (string, error) {
	title = model.NormalizeTitle(title)
	if err := model.ValidateNew(title, description, estimate); err != nil {
		return "", err
	}

	s.mu.Lock()
	task := model.Task{
		ID:            s.newID(),
		Title:         title,
		Description:   description,
		EstimatedTime: estimate,
		Status:        model.StatusPending,
		CreatedAt:     s.now(),
		Order:         len(s.tasks),
	}
	s.tasks = append(s.tasks, task)
	s.commitLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventAdded, TaskID: task.ID})
	return task.ID, nil
}

// Update merges patch into the task with id. Lifecycle fields cannot be patched.
func (s *Store) Update(id string, patch model.TaskPatch) error {
	if patch.Title != nil {
		title := model.NormalizeTitle(*patch.Title)
		patch.Title = &title
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	if patch.IsEmpty() {
		s.mu.Unlock()
		return nil
	}

	updated := patch.Apply(s.tasks[i])
	if err := updated.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tasks[i] = updated
	s.commitLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventUpdated, TaskID: id})
	return nil
}

// Delete removes the task. Deleting the active task leaves no task active.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.renumber()
	s.commitLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventDeleted, TaskID: id})
	return nil
}

// Start makes the task the single active task, demoting any other one
// back to pending. Starting the already active task changes nothing.
func (s *Store) Start(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	switch s.tasks[i].Status {
	case model.StatusCompleted:
		s.mu.Unlock()
		return ErrTaskCompleted
	case model.StatusInProgress:
		s.mu.Unlock()
		return nil
	}

	now := s.now()
	var events []Event
	for j := range s.tasks {
		if j != i && s.tasks[j].IsActive() {
			s.tasks[j].Status = model.StatusPending
			s.tasks[j].StartedAt = nil
			events = append(events, Event{Kind: EventDemoted, TaskID: s.tasks[j].ID})
		}
	}
	s.tasks[i].Status = model.StatusInProgress
	s.tasks[i].StartedAt = &now
	s.commitLocked()
	s.mu.Unlock()

	events = append(events, Event{Kind: EventStarted, TaskID: id})
	s.emit(events...)
	return nil
}

// Complete finishes the active task
func (s *Store) Complete(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	switch s.tasks[i].Status {
	case model.StatusCompleted:
		s.mu.Unlock()
		return ErrTaskCompleted
	case model.StatusPending:
		s.mu.Unlock()
		return ErrNotStarted
	}

	now := s.now()
	s.tasks[i].Status = model.StatusCompleted
	s.tasks[i].CompletedAt = &now
	s.commitLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventCompleted, TaskID: id})
	return nil
}

// Reorder assigns order by position in ids, which must name every task once
func (s *Store) Reorder(ids []string) error {
	s.mu.Lock()
	if len(ids) != len(s.tasks) {
		s.mu.Unlock()
		return fmt.Errorf("%w: got %d ids for %d tasks", ErrInvalidOrder, len(ids), len(s.tasks))
	}

	byID := make(map[string]model.Task, len(s.tasks))
	for _, t := range s.tasks {
		byID[t.ID] = t
	}
	reordered := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: unknown or repeated id %q", ErrInvalidOrder, id)
		}
		delete(byID, id)
		reordered = append(reordered, t)
	}
	s.tasks = reordered
	s.renumber()
	s.commitLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventReordered})
	return nil
}

// Move shifts one task to position to, clamped to the list bounds
func (s *Store) Move(id string, to int) error {
	s.mu.Lock()
	from := s.indexOf(id)
	if from < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	to = max(0, min(to, len(s.tasks)-1))
	if from == to {
		s.mu.Unlock()
		return nil
	}

	t := s.tasks[from]
	s.tasks = append(s.tasks[:from], s.tasks[from+1:]...)
	s.tasks = append(s.tasks[:to], append([]model.Task{t}, s.tasks[to:]...)...)
	s.renumber()
	s.commitLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventReordered, TaskID: id})
	return nil
}

// Clear removes every task
func (s *Store) Clear() error {
	s.mu.Lock()
	s.tasks = []model.Task{}
	s.commitLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventCleared})
	return nil
}

// Flush retries a failed write-through
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	s.commitLocked()
	return s.persistErr
}

// PersistErr returns the last persistence failure, or nil once a write succeeds
func (s *Store) PersistErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistErr
}

// commitLocked writes the snapshot. Failure keeps the in-memory change and
// leaves the store dirty so the next mutation retries.
func (s *Store) commitLocked() {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveTasks(s.snapshot()); err != nil {
		if !s.dirty {
			s.logger.Error("saving tasks failed, continuing in memory", "err", err)
		} else {
			s.logger.Warn("saving tasks still failing", "err", err)
		}
		s.dirty = true
		s.persistErr = err
		return
	}
	if s.dirty {
		s.logger.Info("saving tasks recovered")
	}
	s.dirty = false
	s.persistErr = nil
}

func (s *Store) snapshot() []model.Task {
	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) renumber() {
	for i := range s.tasks {
		s.tasks[i].Order = i
	}
}

// CheckInvariants verifies a collection: at most one active task, dense
// order and no completedAt without startedAt.
func CheckInvariants(tasks []model.Task) error {
	active := 0
	seen := make(map[int]bool, len(tasks))
	for _, t := range tasks {
		if t.IsActive() {
			active++
		}
		if t.CompletedAt != nil && t.StartedAt == nil {
			return fmt.Errorf("%w: task %s completed without start", ErrInvariantViolation, t.ID)
		}
		if t.Order < 0 || t.Order >= len(tasks) || seen[t.Order] {
			return fmt.Errorf("%w: order %d of task %s is not dense", ErrInvariantViolation, t.Order, t.ID)
		}
		seen[t.Order] = true
	}
	if active > 1 {
		return fmt.Errorf("%w: %d tasks in progress", ErrInvariantViolation, active)
	}
	return nil
}
