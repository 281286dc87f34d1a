package views

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dori/dhyan/internal/app"
	"github.com/dori/dhyan/internal/model"
	"github.com/dori/dhyan/internal/timer"
	"github.com/dori/dhyan/internal/ui/theme"
)

// ListMode represents the current input mode of the list view
type ListMode int

const (
	ListModeNormal ListMode = iota
	ListModeAdd
	ListModeEdit
	ListModeConfirmDelete
)

// Form fields
const (
	fieldTitle = iota
	fieldDescription
	fieldEstimate
	fieldCount
)

// ListView displays today's tasks in order
type ListView struct {
	app    *app.App
	width  int
	height int

	tasks        []model.Task
	cursor       int
	scrollOffset int // First visible task index
	state        timer.State

	mode       ListMode
	inputs     [fieldCount]textinput.Model
	focusIndex int
	editingID  string
	deleteID   string
	formErr    string
}

// NewListView creates a new list view
func NewListView(application *app.App) ListView {
	var inputs [fieldCount]textinput.Model

	inputs[fieldTitle] = textinput.New()
	inputs[fieldTitle].Placeholder = "What are you working on?"
	inputs[fieldTitle].CharLimit = model.MaxTitleLength
	inputs[fieldTitle].Prompt = "Title: "

	inputs[fieldDescription] = textinput.New()
	inputs[fieldDescription].Placeholder = "Optional notes"
	inputs[fieldDescription].CharLimit = model.MaxDescriptionLength
	inputs[fieldDescription].Prompt = "Notes: "

	inputs[fieldEstimate] = textinput.New()
	inputs[fieldEstimate].Placeholder = strconv.Itoa(model.DefaultEstimate)
	inputs[fieldEstimate].CharLimit = 8
	inputs[fieldEstimate].Prompt = "Minutes: "

	return ListView{
		app:    application,
		inputs: inputs,
	}
}

// Init initializes the list view
func (v ListView) Init() tea.Cmd {
	return nil
}

// IsInputMode returns true when the view is capturing text input
func (v ListView) IsInputMode() bool {
	return v.mode != ListModeNormal
}

// Mode returns the current input mode
func (v ListView) Mode() ListMode {
	return v.mode
}

// SetSize updates the view dimensions
func (v ListView) SetSize(width, height int) ListView {
	v.width = width
	v.height = height
	for i := range v.inputs {
		v.inputs[i].Width = width - 16
	}
	return v
}

// SetTasks replaces the displayed tasks, keeping the cursor on the same task
func (v ListView) SetTasks(tasks []model.Task) ListView {
	var selected string
	if v.cursor < len(v.tasks) {
		selected = v.tasks[v.cursor].ID
	}

	v.tasks = tasks
	for i := range tasks {
		if tasks[i].ID == selected {
			v.cursor = i
			break
		}
	}
	if v.cursor >= len(v.tasks) {
		v.cursor = max(0, len(v.tasks)-1)
	}
	v.ensureCursorVisible()
	return v
}

// SetTimer updates the timing shown next to the active task
func (v ListView) SetTimer(state timer.State) ListView {
	v.state = state
	return v
}

// Selected returns the task under the cursor
func (v ListView) Selected() (model.Task, bool) {
	if v.cursor < 0 || v.cursor >= len(v.tasks) {
		return model.Task{}, false
	}
	return v.tasks[v.cursor], true
}

// visibleTaskCount returns how many tasks can fit in the viewport
func (v ListView) visibleTaskCount() int {
	available := v.height - 3
	if v.mode == ListModeAdd || v.mode == ListModeEdit {
		available -= fieldCount + 3
	}
	if available < 1 {
		available = 1
	}
	return available
}

// ensureCursorVisible adjusts scrollOffset to keep cursor in view
func (v *ListView) ensureCursorVisible() {
	visible := v.visibleTaskCount()

	if v.cursor < v.scrollOffset {
		v.scrollOffset = v.cursor
	}
	if v.cursor >= v.scrollOffset+visible {
		v.scrollOffset = v.cursor - visible + 1
	}

	maxOffset := max(0, len(v.tasks)-visible)
	v.scrollOffset = max(0, min(v.scrollOffset, maxOffset))
}

// Update handles messages for the list view
func (v ListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if v.mode == ListModeAdd || v.mode == ListModeEdit {
			var cmd tea.Cmd
			v.inputs[v.focusIndex], cmd = v.inputs[v.focusIndex].Update(msg)
			return v, cmd
		}
		return v, nil
	}

	switch v.mode {
	case ListModeAdd, ListModeEdit:
		return v.handleFormMode(keyMsg)
	case ListModeConfirmDelete:
		return v.handleDeleteConfirm(keyMsg)
	default:
		return v.handleNormalMode(keyMsg)
	}
}

// handleNormalMode handles keypresses when browsing the list
func (v ListView) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.tasks)-1 {
			v.cursor++
		}
	case "g", "home":
		v.cursor = 0
	case "G", "end":
		v.cursor = max(0, len(v.tasks)-1)

	case "a":
		return v.openForm(nil)

	case "e":
		if task, ok := v.Selected(); ok {
			if task.IsCompleted() {
				return v, statusCmd("Completed tasks cannot be edited")
			}
			return v.openForm(&task)
		}

	case "s":
		if task, ok := v.Selected(); ok {
			id := task.ID
			return v, actionCmd(func() error { return v.app.Store.Start(id) }, "Started: "+task.Title)
		}

	case "c":
		if task, ok := v.Selected(); ok {
			id := task.ID
			return v, actionCmd(func() error { return v.app.Store.Complete(id) }, "Completed: "+task.Title)
		}

	case "d":
		if task, ok := v.Selected(); ok {
			v.mode = ListModeConfirmDelete
			v.deleteID = task.ID
		}

	case "K", "shift+up":
		return v.moveSelected(-1)
	case "J", "shift+down":
		return v.moveSelected(1)

	case "enter", "f":
		if task, ok := v.Selected(); ok {
			id := task.ID
			return v, func() tea.Msg { return FocusTaskRequest{TaskID: id} }
		}
	}

	v.ensureCursorVisible()
	return v, nil
}

func (v ListView) moveSelected(delta int) (tea.Model, tea.Cmd) {
	task, ok := v.Selected()
	if !ok {
		return v, nil
	}
	to := v.cursor + delta
	if to < 0 || to >= len(v.tasks) {
		return v, nil
	}
	// Swap locally so the cursor stays on the task until the store reloads
	tasks := append([]model.Task(nil), v.tasks...)
	tasks[v.cursor], tasks[to] = tasks[to], tasks[v.cursor]
	v.tasks = tasks
	v.cursor = to
	v.ensureCursorVisible()

	id := task.ID
	return v, actionCmd(func() error { return v.app.Store.Move(id, to) }, "")
}

// openForm shows the add form, or the edit form prefilled from task
func (v ListView) openForm(task *model.Task) (tea.Model, tea.Cmd) {
	for i := range v.inputs {
		v.inputs[i].Reset()
		v.inputs[i].Blur()
	}
	v.formErr = ""
	v.focusIndex = fieldTitle

	if task == nil {
		v.mode = ListModeAdd
		v.editingID = ""
	} else {
		v.mode = ListModeEdit
		v.editingID = task.ID
		v.inputs[fieldTitle].SetValue(task.Title)
		v.inputs[fieldDescription].SetValue(task.Description)
		v.inputs[fieldEstimate].SetValue(strconv.Itoa(task.EstimatedTime))
	}
	v.ensureCursorVisible()
	cmd := v.inputs[fieldTitle].Focus()
	return v, cmd
}

func (v ListView) closeForm() ListView {
	v.mode = ListModeNormal
	v.editingID = ""
	v.formErr = ""
	for i := range v.inputs {
		v.inputs[i].Blur()
	}
	return v
}

// handleFormMode handles keypresses in the add and edit forms
func (v ListView) handleFormMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return v.closeForm(), nil

	case "tab", "down":
		return v.focusField((v.focusIndex + 1) % fieldCount)

	case "shift+tab", "up":
		return v.focusField((v.focusIndex + fieldCount - 1) % fieldCount)

	case "enter":
		if v.focusIndex < fieldEstimate {
			return v.focusField(v.focusIndex + 1)
		}
		return v.submitForm()
	}

	var cmd tea.Cmd
	v.inputs[v.focusIndex], cmd = v.inputs[v.focusIndex].Update(msg)
	return v, cmd
}

func (v ListView) focusField(i int) (tea.Model, tea.Cmd) {
	v.inputs[v.focusIndex].Blur()
	v.focusIndex = i
	cmd := v.inputs[i].Focus()
	return v, cmd
}

// submitForm validates the form and issues the add or update
func (v ListView) submitForm() (tea.Model, tea.Cmd) {
	title := model.NormalizeTitle(v.inputs[fieldTitle].Value())
	description := strings.TrimSpace(v.inputs[fieldDescription].Value())

	estimate, err := parseEstimate(v.inputs[fieldEstimate].Value())
	if err == nil {
		err = model.ValidateNew(title, description, estimate)
	}
	if err != nil {
		v.formErr = formError(err)
		return v, nil
	}

	if v.mode == ListModeAdd {
		v = v.closeForm()
		v.cursor = len(v.tasks)
		return v, actionCmd(func() error {
			_, err := v.app.Store.Add(title, description, estimate)
			return err
		}, "Added: "+title)
	}

	id := v.editingID
	patch := model.TaskPatch{
		Title:         &title,
		Description:   &description,
		EstimatedTime: &estimate,
	}
	v = v.closeForm()
	return v, actionCmd(func() error { return v.app.Store.Update(id, patch) }, "Updated: "+title)
}

func formError(err error) string {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("%s: %s", verr.Field, verr.Message)
	}
	return err.Error()
}

// handleDeleteConfirm asks before removing a task
func (v ListView) handleDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := v.deleteID
	v.mode = ListModeNormal
	v.deleteID = ""

	switch msg.String() {
	case "y", "Y":
		title := ""
		if task := findTask(v.tasks, id); task != nil {
			title = task.Title
		}
		return v, actionCmd(func() error { return v.app.Store.Delete(id) }, "Deleted: "+title)
	}
	return v, nil
}

func statusCmd(message string) tea.Cmd {
	return func() tea.Msg { return StatusMsg{Message: message} }
}

// View renders the list
func (v ListView) View() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	var b strings.Builder

	if v.mode == ListModeAdd || v.mode == ListModeEdit {
		b.WriteString(v.renderForm())
		b.WriteString("\n\n")
	}

	if len(v.tasks) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(t.Subtle).
			Italic(true).
			Padding(1, 2)
		b.WriteString(empty.Render("No tasks for today. Press 'a' to add one."))
		return b.String()
	}

	visible := v.visibleTaskCount()
	end := min(len(v.tasks), v.scrollOffset+visible)
	for i := v.scrollOffset; i < end; i++ {
		b.WriteString(v.renderTask(v.tasks[i], i == v.cursor))
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	if v.mode == ListModeConfirmDelete {
		if task := findTask(v.tasks, v.deleteID); task != nil {
			confirm := lipgloss.NewStyle().Foreground(t.Warning).Bold(true)
			b.WriteString("\n\n")
			b.WriteString(confirm.Render(fmt.Sprintf("Delete \"%s\"? (y/n)", task.Title)))
		}
	}

	if len(v.tasks) > visible {
		b.WriteString("\n")
		b.WriteString(styles.Label.Render(fmt.Sprintf("  %d-%d of %d", v.scrollOffset+1, end, len(v.tasks))))
	}

	return b.String()
}

// renderTask renders one row: marker, status icon, title, timing
func (v ListView) renderTask(task model.Task, selected bool) string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	cursor := "  "
	if selected {
		cursor = lipgloss.NewStyle().Foreground(t.Primary).Render("▸ ")
	}

	icon := lipgloss.NewStyle().Foreground(t.StatusColor(task.Status)).Render(statusIcon(task.Status))

	var timing string
	switch task.Status {
	case model.StatusInProgress:
		clock := timer.FormatClock(v.state.Elapsed)
		if v.state.Overrun() {
			timing = styles.Overrun.Render(clock + " / " + timer.FormatMinutes(float64(task.EstimatedTime)))
		} else {
			timing = styles.Estimate.Render(clock + " / " + timer.FormatMinutes(float64(task.EstimatedTime)))
		}
	case model.StatusCompleted:
		timing = styles.Label.Render(timer.FormatMinutes(task.Duration().Minutes()) + " of " + timer.FormatMinutes(float64(task.EstimatedTime)))
	default:
		timing = styles.Estimate.Render(timer.FormatMinutes(float64(task.EstimatedTime)))
	}

	titleWidth := max(10, v.width-lipgloss.Width(timing)-10)
	title := truncate(task.Title, titleWidth)

	var style lipgloss.Style
	switch {
	case task.IsCompleted():
		style = styles.TaskDone
	case task.IsActive():
		style = styles.TaskActive
	case selected:
		style = styles.TaskSelected
	default:
		style = styles.TaskNormal
	}

	left := cursor + icon + style.Render(title)
	gap := max(1, v.width-lipgloss.Width(left)-lipgloss.Width(timing)-1)
	return left + strings.Repeat(" ", gap) + timing
}

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusInProgress:
		return "◐"
	case model.StatusCompleted:
		return "●"
	default:
		return "○"
	}
}

// renderForm renders the add/edit inputs
func (v ListView) renderForm() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	heading := "New task"
	if v.mode == ListModeEdit {
		heading = "Edit task"
	}

	lines := []string{styles.PanelTitle.Render(heading)}
	for i := range v.inputs {
		lines = append(lines, v.inputs[i].View())
	}
	if v.formErr != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(t.Error).Render(v.formErr))
	}

	return styles.InputFocused.Width(max(20, v.width-4)).Render(strings.Join(lines, "\n"))
}
