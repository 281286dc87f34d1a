package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dori/dhyan/internal/app"
	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/store"
	"github.com/dori/dhyan/internal/ui/theme"
	"github.com/dori/dhyan/internal/ui/views"
)

// RootModel is the main application model that manages views
type RootModel struct {
	app    *app.App
	keys   KeyMap
	help   help.Model
	width  int
	height int

	currentView View
	listView    views.ListView
	focusView   views.FocusView
	statsView   views.StatsView
	helpVisible bool

	// Status message
	statusMsg string
	errorMsg  string

	events      chan store.Event
	unsubscribe func()

	focusID   string // Task pinned in focus view; empty follows the active task
	activeKey string // id@startedAt of the active task
	tickGen   int
}

// NewRootModel creates a new root model
func NewRootModel(application *app.App) RootModel {
	if t, ok := theme.ByName(application.Theme); ok {
		theme.SetTheme(t)
	}

	h := help.New()
	h.ShowAll = true

	m := RootModel{
		app:         application,
		keys:        DefaultKeyMap(),
		help:        h,
		currentView: ViewList,
		listView:    views.NewListView(application),
		focusView:   views.NewFocusView(application),
		statsView:   views.NewStatsView(application),
		events:      make(chan store.Event, 64),
	}

	events := m.events
	m.unsubscribe = application.Store.Subscribe(func(e store.Event) {
		select {
		case events <- e:
		default:
			// Update loop is behind; it reloads everything on the next event anyway
		}
	})

	if application.ResetOnStart {
		m.statusMsg = "New day: yesterday's tasks were cleared"
	}
	m.refresh()
	return m
}

// Close detaches the model from the task store
func (m RootModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init initializes the model
func (m RootModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEvent(m.events), rolloverCmd()}
	if m.activeKey != "" {
		cmds = append(cmds, tickCmd(m.tickGen))
	}
	return tea.Batch(cmds...)
}

// refresh reloads every view from the store and returns a tick command when
// the active task changed
func (m *RootModel) refresh() tea.Cmd {
	tasks := m.app.ListTasks()
	active := views.ActiveTask(tasks)

	m.listView = m.listView.SetTasks(tasks)
	m.statsView = m.statsView.Refresh()

	focus := active
	if m.focusID != "" {
		focus = nil
		for i := range tasks {
			if tasks[i].ID == m.focusID {
				task := tasks[i]
				focus = &task
				break
			}
		}
		if focus == nil {
			m.focusID = ""
			focus = active
		}
	}
	m.focusView = m.focusView.SetTask(focus)
	m.updateTimers(active, focus)

	return m.syncTicker(active)
}

func (m *RootModel) updateTimers(active, focus *model.Task) {
	m.listView = m.listView.SetTimer(m.app.TimerState(active))
	m.focusView = m.focusView.SetState(m.app.TimerState(focus))
}

// syncTicker starts a new tick generation when the active task changes.
// Older ticks still in flight carry a stale generation and are ignored.
func (m *RootModel) syncTicker(active *model.Task) tea.Cmd {
	key := ""
	if active != nil && active.StartedAt != nil {
		key = active.ID + "@" + active.StartedAt.Format(time.RFC3339Nano)
	}
	if key == m.activeKey {
		return nil
	}

	m.activeKey = key
	m.tickGen++
	if key == "" {
		return nil
	}
	return tickCmd(m.tickGen)
}

// onTick recomputes the timer and checks for estimate and day boundaries
func (m *RootModel) onTick() tea.Cmd {
	gen := m.tickGen
	cmds := []tea.Cmd{m.checkRollover()}

	tasks := m.app.ListTasks()
	active := views.ActiveTask(tasks)
	if active != nil {
		state := m.app.TimerState(active)
		if m.app.NotifyOverrun(*active, state) {
			m.statusMsg = fmt.Sprintf("Estimate reached: %s", active.Title)
		}
	}
	m.updateTimers(active, m.focusView.Task())

	if cmd := m.syncTicker(active); cmd != nil {
		cmds = append(cmds, cmd)
	} else if gen == m.tickGen && m.activeKey != "" {
		cmds = append(cmds, tickCmd(gen))
	}
	return tea.Batch(cmds...)
}

func (m *RootModel) checkRollover() tea.Cmd {
	rolled, err := m.app.CheckRollover()
	if err != nil {
		m.errorMsg = err.Error()
		return nil
	}
	if rolled {
		m.statusMsg = "New day: yesterday's tasks were cleared"
		return m.refresh()
	}
	return nil
}

// Update handles messages
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		// Reserve space for header (1 line) and footer (3 lines)
		contentHeight := m.height - 4
		m.listView = m.listView.SetSize(m.width, contentHeight)
		m.focusView = m.focusView.SetSize(m.width, contentHeight)
		m.statsView = m.statsView.SetSize(m.width, contentHeight)
		return m, nil

	case tickMsg:
		if msg.gen != m.tickGen {
			return m, nil
		}
		cmd := m.onTick()
		return m, cmd

	case rolloverMsg:
		cmd := m.checkRollover()
		return m, tea.Batch(cmd, rolloverCmd())

	case storeEventMsg:
		cmd := m.refresh()
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case views.ErrorMsg:
		m.errorMsg = describeError(msg.Err)
		return m, nil

	case views.StatusMsg:
		if msg.Message != "" {
			m.statusMsg = msg.Message
		}
		return m, nil

	case ThemeChangedMsg:
		m.statusMsg = fmt.Sprintf("Theme: %s", msg.ThemeName)
		return m, nil

	case views.FocusTaskRequest:
		m.focusID = msg.TaskID
		m.currentView = ViewFocus
		cmd := m.refresh()
		return m, cmd

	case views.BackToListMsg:
		m.currentView = ViewList
		m.focusID = ""
		cmd := m.refresh()
		return m, cmd

	case tea.KeyMsg:
		// Clear status/error on any keypress
		m.statusMsg = ""
		m.errorMsg = ""

		isInputMode := m.currentView == ViewList && m.listView.IsInputMode()

		// Global keybindings
		switch {
		case key.Matches(msg, m.keys.Quit):
			// ctrl+c always quits, but 'q' only quits when not in input mode
			if msg.String() == "ctrl+c" || !isInputMode {
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.ThemeCycle):
			return m, m.cycleTheme()
		}

		if isInputMode {
			break
		}

		if m.helpVisible {
			if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
				m.helpVisible = false
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Help):
			m.helpVisible = true
			return m, nil

		case key.Matches(msg, m.keys.ListView):
			m.currentView = ViewList
			cmd := m.refresh()
			return m, cmd
		case key.Matches(msg, m.keys.FocusView):
			m.currentView = ViewFocus
			cmd := m.refresh()
			return m, cmd
		case key.Matches(msg, m.keys.StatsView):
			m.currentView = ViewStats
			cmd := m.refresh()
			return m, cmd
		}
	}

	// Delegate to current view
	switch m.currentView {
	case ViewList:
		newListView, cmd := m.listView.Update(msg)
		m.listView = newListView.(views.ListView)
		cmds = append(cmds, cmd)
	case ViewFocus:
		newFocusView, cmd := m.focusView.Update(msg)
		m.focusView = newFocusView.(views.FocusView)
		cmds = append(cmds, cmd)
	case ViewStats:
		newStatsView, cmd := m.statsView.Update(msg)
		m.statsView = newStatsView.(views.StatsView)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func describeError(err error) string {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("%s: %s", verr.Field, verr.Message)
	case errors.Is(err, store.ErrNotStarted):
		return "Start the task before completing it"
	default:
		return err.Error()
	}
}

// View renders the UI
func (m RootModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	// Reserve: 1 line for header + 3 lines for footer
	contentHeight := m.height - 4
	var content string
	if m.helpVisible {
		content = m.renderHelp()
	} else {
		switch m.currentView {
		case ViewList:
			content = m.listView.View()
		case ViewFocus:
			content = m.focusView.View()
		case ViewStats:
			content = m.statsView.View()
		}
	}

	// Ensure content fills available space
	contentLines := strings.Count(content, "\n") + 1
	if contentLines < contentHeight {
		content += strings.Repeat("\n", contentHeight-contentLines)
	}
	sections = append(sections, content)
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

// renderHeader renders the header bar
func (m RootModel) renderHeader() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	title := styles.Header.Render("dhyan")

	viewStyle := lipgloss.NewStyle().
		Foreground(t.Subtle).
		Padding(0, 1)
	viewIndicator := viewStyle.Render(fmt.Sprintf("[%s]", m.currentView.String()))

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, title, viewIndicator)

	// Active task summary on the right
	rightSide := viewStyle.Render(time.Now().Format("Mon 2 Jan"))
	if m.activeKey != "" {
		if task := views.ActiveTask(m.app.ListTasks()); task != nil {
			state := m.app.TimerState(task)
			rightSide = lipgloss.NewStyle().Foreground(t.StatusInProgress).Padding(0, 1).
				Render(fmt.Sprintf("◐ %s %.0f%%", truncate(task.Title, 24), state.Progress)) + rightSide
		}
	}

	gap := max(0, m.width-lipgloss.Width(leftSide)-lipgloss.Width(rightSide))
	return leftSide + strings.Repeat(" ", gap) + rightSide
}

// renderFooter renders the footer/status bar
func (m RootModel) renderFooter() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	key := func(k, desc string) string {
		return styles.HelpKey.Render(k) + styles.HelpDesc.Render(" "+desc)
	}
	sep := styles.HelpSeparator.Render(" │ ")

	var statusLine string
	if m.errorMsg != "" {
		statusLine = lipgloss.NewStyle().Foreground(t.Error).Render(m.errorMsg)
	} else if m.statusMsg != "" {
		statusLine = lipgloss.NewStyle().Foreground(t.Info).Render(m.statusMsg)
	}

	var line1, line2 string
	switch m.currentView {
	case ViewList:
		switch m.listView.Mode() {
		case views.ListModeAdd, views.ListModeEdit:
			line1 = key("tab", "next field") + sep + key("enter", "save") + sep + key("esc", "cancel")
		case views.ListModeConfirmDelete:
			line1 = key("y", "delete") + sep + key("n", "keep")
		default:
			line1 = key("a", "add") + sep +
				key("e", "edit") + sep +
				key("s", "start") + sep +
				key("c", "complete") + sep +
				key("d", "del") + sep +
				key("K/J", "move")
			line2 = key("enter", "focus") + sep +
				key("1-3", "views") + sep +
				key("ctrl+t", "theme") + sep +
				key("?", "help")
		}

	case ViewFocus:
		line1 = key("s", "start") + sep +
			key("c", "complete") + sep +
			key("esc", "back")
		line2 = key("1-3", "views") + sep + key("?", "help")

	case ViewStats:
		line1 = key("t", "today/all") + sep + key("r", "refresh")
		line2 = key("1-3", "views") + sep +
			key("ctrl+t", "theme") + sep +
			key("?", "help")
	}

	var lines []string
	if statusLine != "" {
		lines = append(lines, statusLine)
	}
	if line1 != "" {
		lines = append(lines, line1)
	}
	if line2 != "" {
		lines = append(lines, line2)
	}
	return strings.Join(lines, "\n")
}

// renderHelp renders the help overlay
func (m RootModel) renderHelp() string {
	t := theme.Current.Theme

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		MarginBottom(1)
	descStyle := lipgloss.NewStyle().
		Foreground(t.Subtle)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Dhyan Help"))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n\n")
	b.WriteString(descStyle.Render("One task runs at a time. Starting another puts the current one back to pending."))
	b.WriteString("\n")
	b.WriteString(descStyle.Render("Tasks are cleared at the start of each day."))
	b.WriteString("\n\n")
	b.WriteString(descStyle.Render("Press ? or esc to close"))
	return b.String()
}

// cycleTheme switches to the next theme
func (m *RootModel) cycleTheme() tea.Cmd {
	next := theme.Next()
	theme.SetTheme(next)
	return func() tea.Msg { return ThemeChangedMsg{ThemeName: next.Name} }
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
