package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dori/dhyan/internal/app"
	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/timer"
	"github.com/dori/dhyan/internal/ui/theme"
)

// FocusView shows one task with a live timer
type FocusView struct {
	app    *app.App
	width  int
	height int

	task     *model.Task
	state    timer.State
	progress progress.Model
	themeFor string // Theme the progress gradient was built for
}

// NewFocusView creates a new focus view
func NewFocusView(application *app.App) FocusView {
	return FocusView{
		app:      application,
		progress: newProgress(),
		themeFor: theme.Current.Theme.Name,
	}
}

func newProgress() progress.Model {
	t := theme.Current.Theme
	return progress.New(
		progress.WithGradient(t.ProgressStart, t.ProgressEnd),
		progress.WithoutPercentage(),
	)
}

// Init initializes the focus view
func (v FocusView) Init() tea.Cmd {
	return nil
}

// SetTask sets the task to focus on
func (v FocusView) SetTask(task *model.Task) FocusView {
	v.task = task
	return v
}

// SetState updates the timer readout
func (v FocusView) SetState(state timer.State) FocusView {
	v.state = state
	return v
}

// Task returns the focused task, or nil
func (v FocusView) Task() *model.Task {
	return v.task
}

// SetSize sets the view dimensions
func (v FocusView) SetSize(width, height int) FocusView {
	v.width = width
	v.height = height
	v.progress.Width = min(60, max(10, width-20))
	return v
}

// IsInputMode returns whether the view is in input mode
func (v FocusView) IsInputMode() bool {
	return false
}

// Update handles messages
func (v FocusView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || v.task == nil {
		if ok && keyMsg.String() == "esc" {
			return v, func() tea.Msg { return BackToListMsg{} }
		}
		return v, nil
	}

	task := *v.task
	switch keyMsg.String() {
	case "s", " ":
		if task.Status == model.StatusPending {
			return v, actionCmd(func() error { return v.app.Store.Start(task.ID) }, "Started: "+task.Title)
		}
	case "c":
		return v, actionCmd(func() error { return v.app.Store.Complete(task.ID) }, "Completed: "+task.Title)
	case "esc":
		return v, func() tea.Msg { return BackToListMsg{} }
	}
	return v, nil
}

// View renders the focus screen
func (v FocusView) View() string {
	if v.width == 0 || v.height == 0 {
		return "Loading..."
	}
	if v.task == nil {
		return v.renderNoTask()
	}

	styles := theme.Current.Styles
	t := theme.Current.Theme

	// Theme may have changed since the bar was built
	bar := v.progress
	if v.themeFor != t.Name {
		width := bar.Width
		bar = newProgress()
		bar.Width = width
	}

	containerWidth := min(80, v.width-4)
	center := lipgloss.NewStyle().Width(containerWidth).Align(lipgloss.Center)

	var sections []string

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Width(containerWidth).
		Align(lipgloss.Center).
		MarginBottom(1)
	sections = append(sections, titleStyle.Render(v.task.Title))
	sections = append(sections, center.Render(v.renderBadge()))
	sections = append(sections, "")

	switch v.task.Status {
	case model.StatusInProgress:
		sections = append(sections, center.Render(styles.Clock.Render(timer.FormatClock(v.state.Elapsed))))
		sections = append(sections, "")
		sections = append(sections, center.Render(bar.ViewAs(v.state.Progress/100)))

		var remaining string
		if v.state.Overrun() {
			remaining = styles.Overrun.Render("Estimate reached")
		} else {
			remaining = styles.Label.Render(fmt.Sprintf("%s remaining of %s (%.0f%%)",
				timer.FormatClock(v.state.Remaining),
				timer.FormatMinutes(float64(v.task.EstimatedTime)),
				v.state.Progress))
		}
		sections = append(sections, center.Render(remaining))

	case model.StatusCompleted:
		spent := v.task.Duration()
		sections = append(sections, center.Render(styles.Clock.Render(timer.FormatClock(int64(spent.Seconds())))))
		sections = append(sections, "")
		sections = append(sections, center.Render(styles.Label.Render(fmt.Sprintf("Finished in %s, estimated %s",
			timer.FormatMinutes(spent.Minutes()),
			timer.FormatMinutes(float64(v.task.EstimatedTime))))))

	default:
		sections = append(sections, center.Render(styles.Clock.Render(timer.FormatClock(0))))
		sections = append(sections, "")
		sections = append(sections, center.Render(styles.Label.Render(fmt.Sprintf("Estimated %s. Press s to start.",
			timer.FormatMinutes(float64(v.task.EstimatedTime))))))
	}

	if v.task.Description != "" {
		descStyle := lipgloss.NewStyle().
			Foreground(t.Foreground).
			Width(containerWidth).
			Padding(1, 2).
			MarginTop(1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Border)
		sections = append(sections, descStyle.Render(v.task.Description))
	}

	content := strings.Join(sections, "\n")
	return lipgloss.NewStyle().
		Width(v.width).
		Align(lipgloss.Center).
		Render(content)
}

// renderNoTask renders the view when nothing is active
func (v FocusView) renderNoTask() string {
	t := theme.Current.Theme

	style := lipgloss.NewStyle().
		Foreground(t.Subtle).
		Width(v.width).
		Height(v.height).
		Align(lipgloss.Center, lipgloss.Center)

	return style.Render("No task in progress\n\nPress 's' on a task in the list to start it")
}

func (v FocusView) renderBadge() string {
	t := theme.Current.Theme

	style := lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(lipgloss.Color("#000")).
		Background(t.StatusColor(v.task.Status))

	switch v.task.Status {
	case model.StatusInProgress:
		return style.Render("IN PROGRESS")
	case model.StatusCompleted:
		return style.Render("COMPLETED")
	default:
		return style.Render("PENDING")
	}
}
