// Package daily clears the task list when the calendar day changes.
package daily

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dori/dhyan/internal/model"
)

// DateLayout is the persisted calendar date format
const DateLayout = "2006-01-02"

// DateString returns the local calendar date of t
func DateString(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// Storage is the persisted state the policy reads and resets
type Storage interface {
	LastDate() (string, error)
	SetLastDate(date string) error
	SaveTasks(tasks []model.Task) error
}

// Policy tracks the last active date
type Policy struct {
	storage Storage
	now     func() time.Time
	logger  *slog.Logger
	current string
}

// New creates a policy. A nil now uses time.Now.
func New(storage Storage, now func() time.Time, logger *slog.Logger) *Policy {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Policy{storage: storage, now: now, logger: logger}
}

// Apply runs the startup check. When the persisted date differs from today,
// or is missing, the stored tasks are replaced by an empty list and the date
// is moved to today. Reports whether a reset happened.
func (p *Policy) Apply() (bool, error) {
	today := DateString(p.now())

	last, err := p.storage.LastDate()
	if err != nil {
		// Unreadable date is treated like a missing one
		p.logger.Warn("reading last active date failed", "err", err)
		last = ""
	}
	if last == today {
		p.current = today
		return false, nil
	}

	if err := p.storage.SaveTasks(nil); err != nil {
		return false, fmt.Errorf("clearing tasks: %w", err)
	}
	if err := p.storage.SetLastDate(today); err != nil {
		return true, fmt.Errorf("saving last active date: %w", err)
	}
	p.current = today
	p.logger.Info("daily reset", "previous", last, "today", today)
	return true, nil
}

// Check reports whether Apply would reset, without writing anything. Used
// by processes that do not own the storage.
func (p *Policy) Check() bool {
	today := DateString(p.now())
	last, err := p.storage.LastDate()
	if err != nil {
		p.logger.Warn("reading last active date failed", "err", err)
		last = ""
	}
	p.current = today
	return last != today
}

// Current returns the date the policy last applied or marked
func (p *Policy) Current() string {
	return p.current
}

// Due reports whether now falls on a different day than the last mark
func (p *Policy) Due(now time.Time) bool {
	return DateString(now) != p.current
}

// Mark records now as the active date
func (p *Policy) Mark(now time.Time) error {
	today := DateString(now)
	p.current = today
	if err := p.storage.SetLastDate(today); err != nil {
		return fmt.Errorf("saving last active date: %w", err)
	}
	return nil
}
