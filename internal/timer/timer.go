// Package timer derives elapsed, remaining and progress values for the
// active task. Values are always recomputed from wall-clock subtraction, so
// late or missed ticks never accumulate drift.
package timer

import (
	"fmt"
	"math"
	"time"

	"github.com/dori/dhyan/internal/model"
)

// State is the derived timing of one task at one instant
type State struct {
	Elapsed   int64   // Whole seconds since start
	Remaining int64   // Seconds left of the estimate, never negative
	Progress  float64 // Percent of the estimate used, 0..100
}

// Overrun reports whether the estimate has been used up
func (s State) Overrun() bool {
	return s.Progress >= 100
}

// Compute returns the timing for a task started at startedAt with an
// estimate in minutes. Inactive or unstarted tasks have nothing elapsed, so
// the whole estimate remains.
func Compute(now time.Time, startedAt *time.Time, estimateMinutes int, active bool) State {
	if !active || startedAt == nil {
		return State{Remaining: max(int64(estimateMinutes)*60, 0)}
	}

	elapsed := int64(math.Floor(now.Sub(*startedAt).Seconds()))
	if elapsed < 0 {
		elapsed = 0
	}

	total := int64(estimateMinutes) * 60
	if total <= 0 {
		var progress float64
		if elapsed > 0 {
			progress = 100
		}
		return State{Elapsed: elapsed, Remaining: 0, Progress: progress}
	}

	progress := math.Min(float64(elapsed)/float64(total)*100, 100)
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return State{Elapsed: elapsed, Remaining: remaining, Progress: progress}
}

// ForTask computes the timing of task at now
func ForTask(now time.Time, task *model.Task) State {
	if task == nil {
		return State{}
	}
	return Compute(now, task.StartedAt, task.EstimatedTime, task.IsActive())
}

// FormatClock renders seconds as HH:MM:SS
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

// FormatMinutes renders a minute count as 45m, 1h or 1h 30m
func FormatMinutes(minutes float64) string {
	m := int(math.Round(minutes))
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	hours := m / 60
	rest := m % 60
	if rest == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rest)
}
