package daily

import (
	"errors"
	"testing"
	"time"

	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.Local)
}

func seed(t *testing.T, a *persist.Adapter, date string) {
	t.Helper()
	started := at(1, 9)
	require.NoError(t, a.SaveTasks([]model.Task{
		{ID: "a", Title: "Write report", EstimatedTime: 60, Status: model.StatusInProgress, CreatedAt: at(1, 8), StartedAt: &started},
		{ID: "b", Title: "Review", EstimatedTime: 30, Status: model.StatusPending, CreatedAt: at(1, 8), Order: 1},
	}))
	if date != "" {
		require.NoError(t, a.SetLastDate(date))
	}
}

func TestDateString(t *testing.T) {
	assert.Equal(t, "2026-03-05", DateString(at(5, 23)))
}

func TestApplyRollover(t *testing.T) {
	a := persist.New(persist.NewMemoryKV(), nil)
	seed(t, a, "2026-03-01")

	p := New(a, func() time.Time { return at(2, 7) }, nil)
	reset, err := p.Apply()
	require.NoError(t, err)
	assert.True(t, reset)

	assert.Empty(t, a.LoadTasks())
	last, err := a.LastDate()
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", last)
	assert.Equal(t, "2026-03-02", p.Current())
}

func TestApplySameDay(t *testing.T) {
	a := persist.New(persist.NewMemoryKV(), nil)
	seed(t, a, "2026-03-01")

	p := New(a, func() time.Time { return at(1, 22) }, nil)
	reset, err := p.Apply()
	require.NoError(t, err)
	assert.False(t, reset)
	assert.Len(t, a.LoadTasks(), 2)
}

func TestApplyMissingDate(t *testing.T) {
	a := persist.New(persist.NewMemoryKV(), nil)
	seed(t, a, "")

	p := New(a, func() time.Time { return at(1, 10) }, nil)
	reset, err := p.Apply()
	require.NoError(t, err)
	assert.True(t, reset)
	assert.Empty(t, a.LoadTasks())
}

type brokenStorage struct {
	readErr  error
	saveErr  error
	dateErr  error
	cleared  bool
	lastDate string
}

func (b *brokenStorage) LastDate() (string, error) { return b.lastDate, b.readErr }
func (b *brokenStorage) SetLastDate(date string) error {
	if b.dateErr != nil {
		return b.dateErr
	}
	b.lastDate = date
	return nil
}
func (b *brokenStorage) SaveTasks(tasks []model.Task) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	b.cleared = len(tasks) == 0
	return nil
}

func TestApplyUnreadableDateResets(t *testing.T) {
	s := &brokenStorage{readErr: errors.New("disk gone"), lastDate: "2026-03-01"}
	p := New(s, func() time.Time { return at(1, 10) }, nil)

	reset, err := p.Apply()
	require.NoError(t, err)
	assert.True(t, reset)
	assert.True(t, s.cleared)
}

func TestApplySaveFailure(t *testing.T) {
	s := &brokenStorage{saveErr: errors.New("quota")}
	p := New(s, func() time.Time { return at(1, 10) }, nil)

	reset, err := p.Apply()
	assert.Error(t, err)
	assert.False(t, reset)
	assert.Equal(t, "", s.lastDate)
}

func TestDueAndMark(t *testing.T) {
	a := persist.New(persist.NewMemoryKV(), nil)
	p := New(a, func() time.Time { return at(1, 10) }, nil)
	_, err := p.Apply()
	require.NoError(t, err)

	assert.False(t, p.Due(at(1, 23)))
	assert.True(t, p.Due(at(2, 0)))

	require.NoError(t, p.Mark(at(2, 0)))
	assert.False(t, p.Due(at(2, 12)))

	last, err := a.LastDate()
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", last)
}

func TestCheckDoesNotWrite(t *testing.T) {
	a := persist.New(persist.NewMemoryKV(), nil)
	seed(t, a, "2026-03-01")

	p := New(a, func() time.Time { return at(2, 7) }, nil)
	assert.True(t, p.Check())
	assert.Len(t, a.LoadTasks(), 2)
	last, err := a.LastDate()
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", last)

	p = New(a, func() time.Time { return at(1, 20) }, nil)
	assert.False(t, p.Check())
}
