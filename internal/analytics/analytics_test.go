package analytics

import (
	"testing"
	"time"

	"github.com/dori/dhyan/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func completed(id string, created time.Time, minutes int) model.Task {
	started := created.Add(time.Minute)
	return model.Task{
		ID:          id,
		Status:      model.StatusCompleted,
		CreatedAt:   created,
		StartedAt:   ptr(started),
		CompletedAt: ptr(started.Add(time.Duration(minutes) * time.Minute)),
	}
}

func TestComputeEmpty(t *testing.T) {
	a := Compute(nil, now, ScopeAll)
	assert.Equal(t, model.Analytics{}, a)
}

func TestComputeSingleCompleted(t *testing.T) {
	a := Compute([]model.Task{completed("a", now.Add(-time.Hour), 40)}, now, ScopeAll)

	assert.Equal(t, 1, a.TotalTasks)
	assert.Equal(t, 1, a.CompletedTasks)
	assert.Equal(t, 100, a.ProductivityPercentage)
	assert.InDelta(t, 40.0, a.TotalTimeSpent, 1e-9)
	assert.InDelta(t, 40.0, a.AverageCompletionTime, 1e-9)
}

func TestComputeMixed(t *testing.T) {
	tasks := []model.Task{
		completed("a", now.Add(-3*time.Hour), 30),
		completed("b", now.Add(-2*time.Hour), 60),
		{ID: "c", Status: model.StatusInProgress, CreatedAt: now, StartedAt: ptr(now)},
		{ID: "d", Status: model.StatusPending, CreatedAt: now},
		{ID: "e", Status: model.StatusPending, CreatedAt: now},
		{ID: "f", Status: model.StatusPending, CreatedAt: now},
	}
	a := Compute(tasks, now, ScopeAll)

	assert.Equal(t, 6, a.TotalTasks)
	assert.Equal(t, 2, a.CompletedTasks)
	assert.Equal(t, 1, a.InProgressTasks)
	assert.Equal(t, 3, a.PendingTasks)
	assert.InDelta(t, 90.0, a.TotalTimeSpent, 1e-9)
	assert.InDelta(t, 45.0, a.AverageCompletionTime, 1e-9)
	assert.Equal(t, 33, a.ProductivityPercentage)
}

func TestComputeRoundsProductivity(t *testing.T) {
	tasks := []model.Task{
		completed("a", now, 1),
		completed("b", now, 1),
		{ID: "c", Status: model.StatusPending, CreatedAt: now},
	}
	assert.Equal(t, 67, Compute(tasks, now, ScopeAll).ProductivityPercentage)
}

func TestComputeCompletedWithoutTimestamps(t *testing.T) {
	tasks := []model.Task{{ID: "a", Status: model.StatusCompleted, CreatedAt: now}}
	a := Compute(tasks, now, ScopeAll)

	assert.Equal(t, 1, a.CompletedTasks)
	assert.Equal(t, 0.0, a.TotalTimeSpent)
	assert.Equal(t, 0.0, a.AverageCompletionTime)
}

func TestComputeTodayScope(t *testing.T) {
	tasks := []model.Task{
		completed("yesterday", now.AddDate(0, 0, -1), 20),
		completed("today", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 10),
		{ID: "late", Status: model.StatusPending, CreatedAt: time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)},
		{ID: "tomorrow", Status: model.StatusPending, CreatedAt: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)},
	}

	a := Compute(tasks, now, ScopeToday)
	assert.Equal(t, 2, a.TotalTasks)
	assert.Equal(t, 1, a.CompletedTasks)
	assert.InDelta(t, 10.0, a.TotalTimeSpent, 1e-9)
	assert.Equal(t, 50, a.ProductivityPercentage)

	assert.Equal(t, 4, Compute(tasks, now, ScopeAll).TotalTasks)
}

func TestProductivityConsistency(t *testing.T) {
	for total := 1; total <= 12; total++ {
		for done := 0; done <= total; done++ {
			tasks := make([]model.Task, 0, total)
			for i := 0; i < total; i++ {
				if i < done {
					tasks = append(tasks, completed("x", now, 5))
				} else {
					tasks = append(tasks, model.Task{ID: "y", Status: model.StatusPending, CreatedAt: now})
				}
			}
			a := Compute(tasks, now, ScopeAll)
			want := int(float64(done)/float64(total)*100 + 0.5)
			assert.Equal(t, want, a.ProductivityPercentage, "%d/%d", done, total)
		}
	}
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("Today")
	require.NoError(t, err)
	assert.Equal(t, ScopeToday, s)

	s, err = ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, s)

	_, err = ParseScope("week")
	assert.Error(t, err)

	assert.Equal(t, ScopeAll, ScopeToday.Toggle())
	assert.Equal(t, "today", ScopeAll.Toggle().String())
}
