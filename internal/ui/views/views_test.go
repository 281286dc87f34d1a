package views

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dori/dhyan/internal/analytics"
	"github.com/dori/dhyan/internal/app"
	"github.com/dori/dhyan/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.InMemory = true
	cfg.Notifications = false
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	a, err := app.New(cfg, app.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, v ListView, msgs ...tea.KeyMsg) (ListView, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var m tea.Model
		m, cmd = v.Update(msg)
		v = m.(ListView)
	}
	return v, cmd
}

func TestParseEstimate(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", model.DefaultEstimate},
		{"45", 45},
		{" 90 ", 90},
		{"1h", 60},
		{"1h30m", 90},
		{"1h 30m", 90},
	}
	for _, tt := range tests {
		got, err := parseEstimate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseEstimate("soon")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListAddForm(t *testing.T) {
	a := newTestApp(t)
	v := NewListView(a).SetSize(80, 20)

	v, _ = press(t, v, runes("a"))
	assert.Equal(t, ListModeAdd, v.Mode())

	v, cmd := press(t, v,
		runes("Write report"),
		tea.KeyMsg{Type: tea.KeyEnter},
		tea.KeyMsg{Type: tea.KeyEnter},
		runes("45"),
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	require.NotNil(t, cmd)
	assert.Equal(t, ListModeNormal, v.Mode())
	assert.IsType(t, StatusMsg{}, cmd())

	tasks := a.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write report", tasks[0].Title)
	assert.Equal(t, 45, tasks[0].EstimatedTime)
}

func TestListAddFormRejectsEstimate(t *testing.T) {
	a := newTestApp(t)
	v := NewListView(a).SetSize(80, 20)

	v, cmd := press(t, v,
		runes("a"),
		runes("Quick"),
		tea.KeyMsg{Type: tea.KeyTab},
		tea.KeyMsg{Type: tea.KeyTab},
		runes("5"),
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	assert.Nil(t, cmd)
	assert.Equal(t, ListModeAdd, v.Mode())
	assert.Contains(t, v.formErr, "estimatedTime")
	assert.Empty(t, a.ListTasks())

	v, _ = press(t, v, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ListModeNormal, v.Mode())
}

func TestListStartAndDelete(t *testing.T) {
	a := newTestApp(t)
	id, err := a.Store.Add("Write report", "", 60)
	require.NoError(t, err)

	v := NewListView(a).SetSize(80, 20).SetTasks(a.ListTasks())

	_, cmd := press(t, v, runes("s"))
	require.NotNil(t, cmd)
	cmd()
	task, err := a.Store.Get(id)
	require.NoError(t, err)
	assert.True(t, task.IsActive())

	v, _ = press(t, v, runes("d"))
	assert.Equal(t, ListModeConfirmDelete, v.Mode())
	v, cmd = press(t, v, runes("n"))
	assert.Nil(t, cmd)
	assert.Equal(t, ListModeNormal, v.Mode())

	_, cmd = press(t, v, runes("d"), runes("y"))
	require.NotNil(t, cmd)
	cmd()
	assert.Empty(t, a.ListTasks())
}

func TestListCompletePendingReportsError(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Store.Add("Write report", "", 60)
	require.NoError(t, err)

	v := NewListView(a).SetSize(80, 20).SetTasks(a.ListTasks())
	_, cmd := press(t, v, runes("c"))
	require.NotNil(t, cmd)
	assert.IsType(t, ErrorMsg{}, cmd())
}

func TestListMoveKeepsCursorOnTask(t *testing.T) {
	a := newTestApp(t)
	for _, title := range []string{"one", "two", "three"} {
		_, err := a.Store.Add(title, "", 30)
		require.NoError(t, err)
	}

	v := NewListView(a).SetSize(80, 20).SetTasks(a.ListTasks())
	v, cmd := press(t, v, runes("G"), runes("K"))
	require.NotNil(t, cmd)
	cmd()
	v = v.SetTasks(a.ListTasks())

	task, ok := v.Selected()
	require.True(t, ok)
	assert.Equal(t, "three", task.Title)
	assert.Equal(t, 1, task.Order)
}

func TestListEnterRequestsFocus(t *testing.T) {
	a := newTestApp(t)
	id, err := a.Store.Add("Write report", "", 60)
	require.NoError(t, err)

	v := NewListView(a).SetSize(80, 20).SetTasks(a.ListTasks())
	_, cmd := press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, FocusTaskRequest{TaskID: id}, cmd())
}

func TestStatsToggleScope(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Store.Add("Write report", "", 60)
	require.NoError(t, err)

	v := NewStatsView(a).SetSize(80, 20).Refresh()
	assert.Equal(t, analytics.ScopeAll, v.Scope())
	assert.Equal(t, 1, v.Stats().TotalTasks)

	m, _ := v.Update(runes("t"))
	v = m.(StatsView)
	assert.Equal(t, analytics.ScopeToday, v.Scope())
	assert.Equal(t, 1, v.Stats().TotalTasks)
	assert.Contains(t, v.View(), "Created today")
}

func TestFocusViewRendersTimer(t *testing.T) {
	a := newTestApp(t)
	id, err := a.Store.Add("Write report", "", 60)
	require.NoError(t, err)
	require.NoError(t, a.Store.Start(id))

	task, err := a.Store.Get(id)
	require.NoError(t, err)

	v := NewFocusView(a).SetSize(100, 30).SetTask(&task).SetState(a.TimerState(&task))
	out := v.View()
	assert.Contains(t, out, "Write report")
	assert.Contains(t, out, "00:00:00")

	_, cmd := v.Update(runes("c"))
	require.NotNil(t, cmd)
	cmd()
	task, err = a.Store.Get(id)
	require.NoError(t, err)
	assert.True(t, task.IsCompleted())
}
