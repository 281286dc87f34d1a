package store

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by one second on every read
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// recordingPersister keeps every snapshot and can be made to fail
type recordingPersister struct {
	saves [][]model.Task
	fail  bool
}

func (p *recordingPersister) SaveTasks(tasks []model.Task) error {
	if p.fail {
		return errors.New("quota exceeded")
	}
	p.saves = append(p.saves, tasks)
	return nil
}

func (p *recordingPersister) last() []model.Task {
	if len(p.saves) == 0 {
		return nil
	}
	return p.saves[len(p.saves)-1]
}

func newTestStore(t *testing.T) (*Store, *recordingPersister, *fakeClock) {
	t.Helper()
	p := &recordingPersister{}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	n := 0
	s := New(p, nil,
		WithClock(clock.Now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("task-%d", n) }),
	)
	return s, p, clock
}

func mustAdd(t *testing.T, s *Store, title string) string {
	t.Helper()
	id, err := s.Add(title, "", 60)
	require.NoError(t, err)
	return id
}

func requireInvariants(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, CheckInvariants(s.List()))
}

func TestAddCreatesPendingTask(t *testing.T) {
	s, p, _ := newTestStore(t)

	id, err := s.Add("  Write report ", "", 60)
	require.NoError(t, err)

	task, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Equal(t, 0, task.Order)
	assert.Equal(t, 60, task.EstimatedTime)
	assert.Nil(t, task.StartedAt)
	assert.False(t, task.CreatedAt.IsZero())

	require.Len(t, p.saves, 1, "add must write through")
	assert.Equal(t, id, p.last()[0].ID)

	id2 := mustAdd(t, s, "Second")
	task2, _ := s.Get(id2)
	assert.Equal(t, 1, task2.Order)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	s, p, _ := newTestStore(t)

	cases := []struct {
		title, desc string
		estimate    int
	}{
		{"", "", 60},
		{"   ", "", 60},
		{strings.Repeat("x", 51), "", 60},
		{"ok", strings.Repeat("x", 201), 60},
		{"ok", "", 14},
		{"ok", "", 481},
	}
	for _, c := range cases {
		_, err := s.Add(c.title, c.desc, c.estimate)
		assert.True(t, errors.Is(err, model.ErrValidation), "input %+v", c)
	}

	assert.Zero(t, s.Len())
	assert.Empty(t, p.saves, "rejected input must not persist")
}

func TestUpdate(t *testing.T) {
	s, p, _ := newTestStore(t)
	id := mustAdd(t, s, "Draft")

	title := "Final"
	desc := "with notes"
	require.NoError(t, s.Update(id, model.TaskPatch{Title: &title, Description: &desc}))

	task, _ := s.Get(id)
	assert.Equal(t, "Final", task.Title)
	assert.Equal(t, "with notes", task.Description)
	assert.Equal(t, 60, task.EstimatedTime)
	assert.Len(t, p.saves, 2)

	bad := 5
	err := s.Update(id, model.TaskPatch{EstimatedTime: &bad})
	assert.True(t, errors.Is(err, model.ErrValidation))
	task, _ = s.Get(id)
	assert.Equal(t, 60, task.EstimatedTime, "invalid patch must not apply")

	assert.ErrorIs(t, s.Update("missing", model.TaskPatch{Title: &title}), ErrNotFound)
}

func TestStartAndDemote(t *testing.T) {
	s, p, _ := newTestStore(t)
	first := mustAdd(t, s, "First")
	second := mustAdd(t, s, "Second")

	require.NoError(t, s.Start(first))
	task, _ := s.Get(first)
	assert.Equal(t, model.StatusInProgress, task.Status)
	require.NotNil(t, task.StartedAt)

	require.NoError(t, s.Start(second))
	demoted, _ := s.Get(first)
	active, _ := s.Get(second)
	assert.Equal(t, model.StatusPending, demoted.Status)
	assert.Nil(t, demoted.StartedAt, "demotion clears startedAt")
	assert.Equal(t, model.StatusInProgress, active.Status)
	assert.NotNil(t, active.StartedAt)

	got, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, second, got.ID)
	assert.Len(t, p.saves, 4)
	requireInvariants(t, s)
}

func TestStartActiveTaskKeepsStartTime(t *testing.T) {
	s, _, _ := newTestStore(t)
	id := mustAdd(t, s, "Focus")

	require.NoError(t, s.Start(id))
	before, _ := s.Get(id)
	require.NoError(t, s.Start(id))
	after, _ := s.Get(id)

	assert.True(t, before.StartedAt.Equal(*after.StartedAt))
}

func TestStartErrors(t *testing.T) {
	s, _, _ := newTestStore(t)
	id := mustAdd(t, s, "Done soon")

	assert.ErrorIs(t, s.Start("missing"), ErrNotFound)

	require.NoError(t, s.Start(id))
	require.NoError(t, s.Complete(id))
	assert.ErrorIs(t, s.Start(id), ErrTaskCompleted)

	task, _ := s.Get(id)
	assert.Equal(t, model.StatusCompleted, task.Status, "completed is terminal")
}

func TestComplete(t *testing.T) {
	s, _, _ := newTestStore(t)
	id := mustAdd(t, s, "Write report")

	assert.ErrorIs(t, s.Complete(id), ErrNotStarted)
	assert.ErrorIs(t, s.Complete("missing"), ErrNotFound)

	require.NoError(t, s.Start(id))
	require.NoError(t, s.Complete(id))

	task, _ := s.Get(id)
	assert.Equal(t, model.StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	require.NotNil(t, task.StartedAt)
	assert.True(t, task.CompletedAt.After(*task.StartedAt))

	_, ok := s.Active()
	assert.False(t, ok)
	assert.ErrorIs(t, s.Complete(id), ErrTaskCompleted)
	requireInvariants(t, s)
}

func TestDelete(t *testing.T) {
	s, p, _ := newTestStore(t)
	a := mustAdd(t, s, "A")
	b := mustAdd(t, s, "B")
	c := mustAdd(t, s, "C")

	require.NoError(t, s.Start(b))
	require.NoError(t, s.Delete(b))

	_, ok := s.Active()
	assert.False(t, ok, "deleting the active task leaves none active")

	tasks := s.List()
	require.Len(t, tasks, 2)
	assert.Equal(t, a, tasks[0].ID)
	assert.Equal(t, c, tasks[1].ID)
	assert.Equal(t, 1, tasks[1].Order)
	assert.Len(t, p.last(), 2)

	assert.ErrorIs(t, s.Delete(b), ErrNotFound)

	require.NoError(t, s.Start(c))
	require.NoError(t, s.Complete(c))
	assert.NoError(t, s.Delete(c), "completed tasks can be deleted")
	requireInvariants(t, s)
}

func TestReorderMovesLastToFirst(t *testing.T) {
	s, _, _ := newTestStore(t)
	a := mustAdd(t, s, "A")
	b := mustAdd(t, s, "B")
	c := mustAdd(t, s, "C")
	before, _ := s.Get(a)

	require.NoError(t, s.Reorder([]string{c, a, b}))

	tasks := s.List()
	assert.Equal(t, []string{c, a, b}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})
	for i, task := range tasks {
		assert.Equal(t, i, task.Order)
	}

	after, _ := s.Get(a)
	before.Order = after.Order
	assert.Equal(t, before, after, "reorder changes nothing but order")
}

func TestReorderRejectsPartialList(t *testing.T) {
	s, p, _ := newTestStore(t)
	a := mustAdd(t, s, "A")
	b := mustAdd(t, s, "B")
	saves := len(p.saves)

	assert.ErrorIs(t, s.Reorder([]string{a}), ErrInvalidOrder)
	assert.ErrorIs(t, s.Reorder([]string{a, a}), ErrInvalidOrder)
	assert.ErrorIs(t, s.Reorder([]string{a, "zzz"}), ErrInvalidOrder)
	assert.Len(t, p.saves, saves)

	tasks := s.List()
	assert.Equal(t, a, tasks[0].ID)
	assert.Equal(t, b, tasks[1].ID)
}

func TestMove(t *testing.T) {
	s, _, _ := newTestStore(t)
	a := mustAdd(t, s, "A")
	b := mustAdd(t, s, "B")
	c := mustAdd(t, s, "C")

	require.NoError(t, s.Move(a, 2))
	ids := func() []string {
		var out []string
		for _, task := range s.List() {
			out = append(out, task.ID)
		}
		return out
	}
	assert.Equal(t, []string{b, c, a}, ids())

	require.NoError(t, s.Move(a, -10))
	assert.Equal(t, []string{a, b, c}, ids())

	assert.ErrorIs(t, s.Move("missing", 0), ErrNotFound)
	requireInvariants(t, s)
}

func TestClear(t *testing.T) {
	s, p, _ := newTestStore(t)
	mustAdd(t, s, "A")

	require.NoError(t, s.Clear())
	assert.Zero(t, s.Len())
	assert.Empty(t, p.last())
}

func TestPersistenceFailureIsNonFatal(t *testing.T) {
	s, p, _ := newTestStore(t)
	p.fail = true

	id, err := s.Add("Offline", "", 30)
	require.NoError(t, err, "persistence failures never reach the caller")
	assert.Equal(t, 1, s.Len(), "in-memory change stands")
	assert.Error(t, s.PersistErr())

	p.fail = false
	require.NoError(t, s.Start(id), "next mutation retries the write")
	assert.NoError(t, s.PersistErr())
	assert.Len(t, p.last(), 1)
}

func TestFlushRetriesDirtyState(t *testing.T) {
	s, p, _ := newTestStore(t)
	p.fail = true
	mustAdd(t, s, "A")

	assert.Error(t, s.Flush())
	p.fail = false
	assert.NoError(t, s.Flush())
	assert.Len(t, p.last(), 1)

	saves := len(p.saves)
	assert.NoError(t, s.Flush())
	assert.Len(t, p.saves, saves, "clean store does not write")
}

func TestSubscribe(t *testing.T) {
	s, _, _ := newTestStore(t)
	var got []Event
	cancel := s.Subscribe(func(e Event) { got = append(got, e) })

	a := mustAdd(t, s, "A")
	b := mustAdd(t, s, "B")
	require.NoError(t, s.Start(a))
	require.NoError(t, s.Start(b))
	require.NoError(t, s.Complete(b))

	kinds := make([]EventKind, len(got))
	for i, e := range got {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []EventKind{
		EventAdded, EventAdded, EventStarted, EventDemoted, EventStarted, EventCompleted,
	}, kinds)
	assert.Equal(t, a, got[3].TaskID)

	cancel()
	mustAdd(t, s, "C")
	assert.Len(t, got, 6)
}

func TestSubscriberMayReadStore(t *testing.T) {
	s, _, _ := newTestStore(t)
	var active string
	s.Subscribe(func(e Event) {
		if task, ok := s.Active(); ok {
			active = task.ID
		}
	})

	id := mustAdd(t, s, "A")
	require.NoError(t, s.Start(id))
	assert.Equal(t, id, active)
}

func TestNewNormalizesOrderOfSeed(t *testing.T) {
	seed := []model.Task{
		{ID: "b", Title: "B", Status: model.StatusPending, Order: 5},
		{ID: "a", Title: "A", Status: model.StatusPending, Order: 1},
	}
	s := New(persist.New(persist.NewMemoryKV(), nil), seed)

	tasks := s.List()
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, 0, tasks[0].Order)
	assert.Equal(t, 1, tasks[1].Order)
}

func TestStoreWritesThroughAdapter(t *testing.T) {
	adapter := persist.New(persist.NewMemoryKV(), nil)
	s := New(adapter, nil)

	id, err := s.Add("Persisted", "", 45)
	require.NoError(t, err)
	require.NoError(t, s.Start(id))

	reloaded := New(adapter, adapter.LoadTasks())
	task, err := reloaded.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, task.Status)
	require.NotNil(t, task.StartedAt)
}

// Any sequence of operations keeps a single active task and dense order
func TestRandomOperationsKeepInvariants(t *testing.T) {
	s, _, _ := newTestStore(t)
	rng := rand.New(rand.NewSource(42))

	for step := 0; step < 2000; step++ {
		tasks := s.List()
		pick := func() string {
			if len(tasks) == 0 || rng.Intn(10) == 0 {
				return "missing"
			}
			return tasks[rng.Intn(len(tasks))].ID
		}

		switch rng.Intn(7) {
		case 0, 1:
			_, _ = s.Add(fmt.Sprintf("task %d", step), "", 15+rng.Intn(466))
		case 2:
			_ = s.Delete(pick())
		case 3, 4:
			_ = s.Start(pick())
		case 5:
			_ = s.Complete(pick())
		case 6:
			ids := make([]string, len(tasks))
			for i, p := range rng.Perm(len(tasks)) {
				ids[i] = tasks[p].ID
			}
			_ = s.Reorder(ids)
		}

		require.NoError(t, CheckInvariants(s.List()), "step %d", step)
	}
}

func TestCheckInvariantsDetectsViolations(t *testing.T) {
	now := time.Now()
	twoActive := []model.Task{
		{ID: "a", Status: model.StatusInProgress, StartedAt: &now, Order: 0},
		{ID: "b", Status: model.StatusInProgress, StartedAt: &now, Order: 1},
	}
	assert.ErrorIs(t, CheckInvariants(twoActive), ErrInvariantViolation)

	gap := []model.Task{{ID: "a", Order: 0}, {ID: "b", Order: 2}}
	assert.ErrorIs(t, CheckInvariants(gap), ErrInvariantViolation)

	noStart := []model.Task{{ID: "a", Status: model.StatusCompleted, CompletedAt: &now}}
	assert.ErrorIs(t, CheckInvariants(noStart), ErrInvariantViolation)
}
