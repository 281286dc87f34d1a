package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dori/dhyan/internal/analytics"
	"github.com/dori/dhyan/internal/app"
	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/timer"
	"github.com/dori/dhyan/internal/ui/theme"
)

// StatsView represents the statistics view
type StatsView struct {
	app    *app.App
	width  int
	height int

	scope analytics.Scope
	stats model.Analytics
}

// NewStatsView creates a new stats view
func NewStatsView(application *app.App) StatsView {
	return StatsView{
		app:   application,
		scope: application.Scope,
	}
}

// Init initializes the stats view
func (v StatsView) Init() tea.Cmd {
	return nil
}

// SetSize sets the view dimensions
func (v StatsView) SetSize(width, height int) StatsView {
	v.width = width
	v.height = height
	return v
}

// Refresh recomputes the snapshot from the current tasks
func (v StatsView) Refresh() StatsView {
	v.stats = v.app.Analytics(v.scope)
	return v
}

// Scope returns the selected scope
func (v StatsView) Scope() analytics.Scope {
	return v.scope
}

// Stats returns the last computed snapshot
func (v StatsView) Stats() model.Analytics {
	return v.stats
}

// IsInputMode returns whether the view is in input mode
func (v StatsView) IsInputMode() bool {
	return false
}

// Update handles messages
func (v StatsView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "t":
			v.scope = v.scope.Toggle()
			return v.Refresh(), nil
		case "r":
			return v.Refresh(), nil
		}
	}
	return v, nil
}

// View renders the stats view
func (v StatsView) View() string {
	if v.width == 0 || v.height == 0 {
		return "Loading..."
	}

	t := theme.Current.Theme

	var sections []string

	scopeLabel := "All tasks"
	if v.scope == analytics.ScopeToday {
		scopeLabel = "Created today"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	sections = append(sections, titleStyle.Render(fmt.Sprintf("Statistics ─ %s", scopeLabel)))
	sections = append(sections, "")

	cardStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 2).
		Width(18)
	valueStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(t.Subtle)

	card := func(value, label string) string {
		return cardStyle.Render(valueStyle.Render(value) + "\n" + labelStyle.Render(label))
	}

	s := v.stats
	countRow := lipgloss.JoinHorizontal(lipgloss.Top,
		card(fmt.Sprintf("%d", s.TotalTasks), "Tasks"),
		card(fmt.Sprintf("%d", s.CompletedTasks), "Completed"),
		card(fmt.Sprintf("%d", s.InProgressTasks), "In Progress"),
		card(fmt.Sprintf("%d", s.PendingTasks), "Pending"),
	)
	timeRow := lipgloss.JoinHorizontal(lipgloss.Top,
		card(timer.FormatMinutes(s.TotalTimeSpent), "Time Spent"),
		card(timer.FormatMinutes(s.AverageCompletionTime), "Avg per Task"),
		card(fmt.Sprintf("%d%%", s.ProductivityPercentage), "Productivity"),
	)
	sections = append(sections, countRow, timeRow, "")

	if s.TotalTasks > 0 {
		sections = append(sections, v.renderBreakdown())
	} else {
		sections = append(sections, labelStyle.Render("No tasks in this scope yet"))
	}

	return strings.Join(sections, "\n")
}

// renderBreakdown renders one bar per status
func (v StatsView) renderBreakdown() string {
	t := theme.Current.Theme
	s := v.stats

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Secondary)
	lines := []string{headerStyle.Render("By Status")}

	rows := []struct {
		label  string
		count  int
		status model.Status
	}{
		{"Completed", s.CompletedTasks, model.StatusCompleted},
		{"In progress", s.InProgressTasks, model.StatusInProgress},
		{"Pending", s.PendingTasks, model.StatusPending},
	}

	barMaxWidth := min(40, max(10, v.width-30))
	for _, r := range rows {
		barWidth := r.count * barMaxWidth / s.TotalTasks
		if barWidth < 1 && r.count > 0 {
			barWidth = 1
		}
		bar := lipgloss.NewStyle().Foreground(t.StatusColor(r.status)).Render(strings.Repeat("█", barWidth))
		lines = append(lines, fmt.Sprintf("%-12s %s %d", r.label, bar, r.count))
	}

	return strings.Join(lines, "\n")
}
