// Package analytics reduces a task collection to a productivity snapshot.
// Nothing is cached; every call re-derives from the tasks it is given.
package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dori/dhyan/internal/model"
)

// Scope selects which tasks are counted
type Scope int

const (
	ScopeAll Scope = iota
	ScopeToday
)

// String returns the scope name
func (s Scope) String() string {
	switch s {
	case ScopeToday:
		return "today"
	default:
		return "all"
	}
}

// Toggle switches between the two scopes
func (s Scope) Toggle() Scope {
	if s == ScopeToday {
		return ScopeAll
	}
	return ScopeToday
}

// ParseScope parses "all" or "today"
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, nil
	case "today":
		return ScopeToday, nil
	default:
		return ScopeAll, fmt.Errorf("unknown scope %q (want all or today)", s)
	}
}

// Compute builds the snapshot for tasks. With ScopeToday only tasks created
// between local midnight of now and the next midnight are counted.
func Compute(tasks []model.Task, now time.Time, scope Scope) model.Analytics {
	var a model.Analytics

	start, end := dayBounds(now)
	for i := range tasks {
		t := &tasks[i]
		if scope == ScopeToday {
			created := t.CreatedAt.In(now.Location())
			if created.Before(start) || !created.Before(end) {
				continue
			}
		}

		a.TotalTasks++
		switch t.Status {
		case model.StatusCompleted:
			a.CompletedTasks++
			a.TotalTimeSpent += t.Duration().Minutes()
		case model.StatusInProgress:
			a.InProgressTasks++
		default:
			a.PendingTasks++
		}
	}

	if a.CompletedTasks > 0 {
		a.AverageCompletionTime = a.TotalTimeSpent / float64(a.CompletedTasks)
	}
	if a.TotalTasks > 0 {
		a.ProductivityPercentage = int(math.Round(float64(a.CompletedTasks) / float64(a.TotalTasks) * 100))
	}
	return a
}

// dayBounds returns local midnight of t and the midnight after it
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
