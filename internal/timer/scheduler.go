package timer

import (
	"context"
	"sync"
	"time"

	"github.com/dori/dhyan/internal/model"
)

// DefaultInterval is the recompute cadence while a task is active
const DefaultInterval = time.Second

// Scheduler recomputes the State of the tracked task on a fixed cadence.
// At most one recompute loop runs at a time.
type Scheduler struct {
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	key    string
	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithInterval overrides the tick cadence
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

// WithNow overrides the time source
func WithNow(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates an idle scheduler
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track starts emitting the State of task to fn: once immediately, then on
// every tick. Tracking the same task with the same start time again is a
// no-op. A different task replaces the current loop; the new loop waits for
// the old one to exit before its first emission. A nil or inactive task
// stops the loop and emits the zero State once.
//
// fn runs on the loop goroutine. It may call Running and Track with an
// active task, but not Stop or Track with an inactive task, which wait for
// the loop to exit.
func (s *Scheduler) Track(task *model.Task, fn func(State)) {
	if task == nil || !task.IsActive() || task.StartedAt == nil {
		s.Stop()
		fn(State{})
		return
	}

	key := task.ID + "@" + task.StartedAt.Format(time.RFC3339Nano)

	s.mu.Lock()
	if s.cancel != nil && s.key == key {
		s.mu.Unlock()
		return
	}
	prev := s.detachLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.key = key
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	snapshot := task.Clone()
	go s.run(ctx, prev, done, &snapshot, fn)
}

// Stop cancels the running loop and waits for it to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	prev := s.detachLocked()
	s.mu.Unlock()

	if prev != nil {
		<-prev
	}
}

// Running reports whether a loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// detachLocked cancels the current loop and returns its done channel, or nil
// when idle. The caller waits on it after releasing mu.
func (s *Scheduler) detachLocked() chan struct{} {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	done := s.done
	s.cancel = nil
	s.done = nil
	s.key = ""
	return done
}

func (s *Scheduler) run(ctx context.Context, prev <-chan struct{}, done chan struct{}, task *model.Task, fn func(State)) {
	defer close(done)

	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}
	fn(ForTask(s.now(), task))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fn(ForTask(s.now(), task))
		}
	}
}
