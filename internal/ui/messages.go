package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dori/dhyan/internal/store"
)

// View represents the current active view
type View int

const (
	ViewList View = iota
	ViewFocus
	ViewStats
)

// String returns the display name for a view
func (v View) String() string {
	switch v {
	case ViewList:
		return "List"
	case ViewFocus:
		return "Focus"
	case ViewStats:
		return "Stats"
	default:
		return "Unknown"
	}
}

// tickMsg drives the timer while a task is active. Ticks from an older
// generation are dropped.
type tickMsg struct {
	gen int
}

// rolloverMsg triggers the day-change check
type rolloverMsg struct{}

// storeEventMsg carries a task store event into the update loop
type storeEventMsg struct {
	event store.Event
}

// ThemeChangedMsg indicates the theme was changed
type ThemeChangedMsg struct {
	ThemeName string
}

const rolloverInterval = time.Minute

func tickCmd(gen int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func rolloverCmd() tea.Cmd {
	return tea.Tick(rolloverInterval, func(time.Time) tea.Msg {
		return rolloverMsg{}
	})
}

// waitForEvent blocks until the store publishes an event
func waitForEvent(events <-chan store.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return storeEventMsg{event: e}
	}
}
