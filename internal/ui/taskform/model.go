package taskform

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// CreateSubmittedMsg is dispatched when the create form is completed.
type CreateSubmittedMsg struct {
	Input model.NewTask
}

// EditSubmittedMsg is dispatched when the edit form is completed.
type EditSubmittedMsg struct {
	ID    int64
	Patch model.TaskPatch
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	status      model.Status
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editMode bool
	editID   int64
	width    int
	height   int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{status: model.DefaultStatus},
		width:  width,
		height: height,
	}
}

// StartCreate resets the form for a new task.
func (m *Model) StartCreate() tea.Cmd {
	m.editMode = false
	m.editID = 0
	m.fb.title = ""
	m.fb.description = ""
	m.fb.status = model.DefaultStatus
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit loads task into the form.
func (m *Model) StartEdit(task model.Task) tea.Cmd {
	m.editMode = true
	m.editID = task.ID
	m.fb.title = html.UnescapeString(task.Title)
	m.fb.description = html.UnescapeString(task.Description)
	m.fb.status = task.Status
	m.form = m.buildForm()
	return m.form.Init()
}

// Editing reports whether the form edits an existing task.
func (m Model) Editing() bool {
	return m.editMode
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.handleSubmit()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.editMode {
		titleText = "Edit Task"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	statusOpts := make([]huh.Option[model.Status], len(model.Statuses))
	for i, s := range model.Statuses {
		statusOpts[i] = huh.NewOption(s.Label(), s)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				CharLimit(model.MaxTitleLen).
				Value(&m.fb.title).
				Validate(validateTitle),
			huh.NewText().
				Title("Description").
				Placeholder("Optional details...").
				CharLimit(model.MaxDescriptionLen).
				Value(&m.fb.description).
				Validate(validateMaxLen("Description", model.MaxDescriptionLen)),
			huh.NewSelect[model.Status]().
				Title("Status").
				Options(statusOpts...).
				Value(&m.fb.status),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	title := strings.TrimSpace(m.fb.title)
	description := m.fb.description
	status := m.fb.status

	if m.editMode {
		id := m.editID
		patch := model.TaskPatch{Title: &title, Description: &description, Status: &status}
		return func() tea.Msg { return EditSubmittedMsg{ID: id, Patch: patch} }
	}

	in := model.NewTask{Title: title, Description: description, Status: status}
	return func() tea.Msg { return CreateSubmittedMsg{Input: in} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("Title is required")
	}
	return validateMaxLen("Title", model.MaxTitleLen)(s)
}

func validateMaxLen(fieldName string, limit int) func(string) error {
	return func(s string) error {
		if utf8.RuneCountInString(s) > limit {
			return fmt.Errorf("%s must be at most %d characters", fieldName, limit)
		}
		return nil
	}
}
