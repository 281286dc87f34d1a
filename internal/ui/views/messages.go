package views

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dori/dhyan/internal/model"
)

// Messages shared between views and the root model.
// (Defined here to avoid circular import with ui package)

// FocusTaskRequest is sent when user wants to focus on a task
type FocusTaskRequest struct {
	TaskID string
}

// BackToListMsg requests returning to list view
type BackToListMsg struct{}

// StatusMsg contains a status message to display
type StatusMsg struct {
	Message string
}

// ErrorMsg contains an error to display
type ErrorMsg struct {
	Err error
}

// actionCmd runs a store operation off the update loop and reports the result
func actionCmd(op func() error, success string) tea.Cmd {
	return func() tea.Msg {
		if err := op(); err != nil {
			return ErrorMsg{Err: err}
		}
		return StatusMsg{Message: success}
	}
}

// parseEstimate accepts plain minutes ("45") or a duration ("1h30m", "1h 30m")
func parseEstimate(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return model.DefaultEstimate, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &model.ValidationError{Field: "estimatedTime", Message: fmt.Sprintf("cannot parse %q as minutes", s)}
	}
	return int(d.Round(time.Minute).Minutes()), nil
}

func findTask(tasks []model.Task, id string) *model.Task {
	for i := range tasks {
		if tasks[i].ID == id {
			t := tasks[i]
			return &t
		}
	}
	return nil
}

// ActiveTask returns the in-progress task of tasks, or nil
func ActiveTask(tasks []model.Task) *model.Task {
	for i := range tasks {
		if tasks[i].IsActive() {
			t := tasks[i]
			return &t
		}
	}
	return nil
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
