// Package tui provides the interactive terminal client for the task list.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"todosync/backend"
	"todosync/internal/app"
	"todosync/internal/utils"
	"todosync/internal/views"
)

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeEdit
	ModeHelp
)

// Config holds the model settings
type Config struct {
	Limit   int          // page size for load and reload
	Filter  views.Filter // initial filter
	Logger  *utils.Logger
	Context context.Context
}

// Model is the TUI state. The event loop owns it; store calls run in
// commands and report back through opDoneMsg.
type Model struct {
	store backend.Store
	ctx   context.Context
	state *app.State
	log   *utils.Logger
	limit int

	// Write intents wait here until the one in flight is confirmed
	queue    []app.Intent
	inFlight bool
	loaded   bool

	view   views.View
	cursor int

	mode       Mode
	titleInput textinput.Model
	dueInput   textinput.Model
	editInput  textinput.Model
	editID     int

	status  string
	lastErr error

	width  int
	height int

	selectedStyle  lipgloss.Style
	completedStyle lipgloss.Style
	dueStyle       lipgloss.Style
	deleteStyle    lipgloss.Style
	tabStyle       lipgloss.Style
	activeTabStyle lipgloss.Style
	helpStyle      lipgloss.Style
	dialogStyle    lipgloss.Style
	statusBarStyle lipgloss.Style
	errorStyle     lipgloss.Style
}

// opDoneMsg carries the outcome of one store call
type opDoneMsg struct {
	op  app.Operation
	res app.Result
	err error
}

// New creates a TUI model over store. The first page is loaded by Init.
func New(store backend.Store, cfg Config) *Model {
	if cfg.Logger == nil {
		cfg.Logger = utils.GetLogger()
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Filter == "" {
		cfg.Filter = views.FilterAll
	}

	title := textinput.New()
	title.Placeholder = "What needs to be done?"
	title.CharLimit = 256
	title.Prompt = "Task: "

	due := textinput.New()
	due.Placeholder = "YYYY-MM-DD, tomorrow, +3d"
	due.CharLimit = 32
	due.Prompt = "Due:  "

	edit := textinput.New()
	edit.CharLimit = 256
	edit.Prompt = ""

	m := &Model{
		store:      store,
		ctx:        cfg.Context,
		state:      app.NewState(cfg.Filter),
		log:        cfg.Logger,
		limit:      cfg.Limit,
		titleInput: title,
		dueInput:   due,
		editInput:  edit,
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		completedStyle: lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("240")),
		dueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		deleteStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("160")),
		tabStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1),
		activeTabStyle: lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
	}
	m.refresh()
	return m
}

// State returns the client state
func (m *Model) State() *app.State {
	return m.state
}

// Err returns the last error shown in the status bar
func (m *Model) Err() error {
	return m.lastErr
}

// Status returns the last confirmation shown in the status bar
func (m *Model) Status() string {
	return m.status
}

// Pending returns the number of intents not yet confirmed
func (m *Model) Pending() int {
	n := len(m.queue)
	if m.inFlight {
		n++
	}
	return n
}

// Mode returns the current input mode
func (m *Model) Mode() Mode {
	return m.mode
}

// Init loads the first page
func (m *Model) Init() tea.Cmd {
	return m.enqueue(app.LoadIntent{Limit: m.limit})
}

// enqueue appends in and starts it if nothing is in flight
func (m *Model) enqueue(in app.Intent) tea.Cmd {
	m.queue = append(m.queue, in)
	return m.dispatch()
}

// dispatch prepares the head of the queue against the current state.
// Intents that fail preparation are reported and skipped.
func (m *Model) dispatch() tea.Cmd {
	for !m.inFlight && len(m.queue) > 0 {
		in := m.queue[0]
		m.queue = m.queue[1:]

		op, err := app.Prepare(m.state, in)
		if err != nil {
			m.fail(err)
			continue
		}

		m.inFlight = true
		store, ctx := m.store, m.ctx
		return func() tea.Msg {
			res, err := op.Do(ctx, store)
			return opDoneMsg{op: op, res: res, err: err}
		}
	}
	return nil
}

func (m *Model) fail(err error) {
	m.lastErr = err
	m.status = ""
	m.log.Error("%v", err)
}

// refresh re-renders the view from state and keeps the cursor in range
func (m *Model) refresh() {
	m.view = m.state.View()
	if m.cursor >= len(m.view.Rows) {
		m.cursor = len(m.view.Rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) selected() (views.Row, bool) {
	if len(m.view.Rows) == 0 {
		return views.Row{}, false
	}
	return m.view.Rows[m.cursor], true
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case opDoneMsg:
		m.inFlight = false
		m.loaded = true
		if msg.err != nil {
			m.fail(fmt.Errorf("%s: %w", msg.op, msg.err))
		} else {
			msg.res.Apply(m.state)
			m.status = msg.res.Summary()
			m.lastErr = nil
			m.log.Debug("%s: %s", msg.op, m.status)
		}
		m.refresh()
		return m, m.dispatch()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case ModeAdd:
			return m.handleAddMode(msg)
		case ModeEdit:
			return m.handleEditMode(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.handleNormalMode(msg)
	}

	return m, nil
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		m.moveCursor(-1)
		return m, nil
	case tea.KeyDown:
		m.moveCursor(1)
		return m, nil
	case tea.KeyEnter, tea.KeySpace:
		return m, m.toggleSelected()
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "k":
		m.moveCursor(-1)
	case "j":
		m.moveCursor(1)

	case "a":
		m.mode = ModeAdd
		m.titleInput.Reset()
		m.dueInput.Reset()
		m.dueInput.Blur()
		m.titleInput.Focus()
		return m, textinput.Blink

	case "e":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = ModeEdit
		m.editID = row.ID
		m.editInput.Reset()
		m.editInput.SetValue(row.Text)
		m.editInput.CursorEnd()
		m.editInput.Focus()
		return m, textinput.Blink

	case "d", "x":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.enqueue(app.DeleteIntent{ID: row.ID})

	case "1", "2", "3":
		m.setFilter(views.Filters[msg.String()[0]-'1'])
	case "f":
		m.setFilter(m.state.CurrentFilter.Next())

	case "r":
		return m, m.enqueue(app.LoadIntent{Limit: m.limit})

	case "?":
		m.mode = ModeHelp
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.refresh()
}

func (m *Model) setFilter(f views.Filter) {
	m.state.CurrentFilter = f
	m.cursor = 0
	m.refresh()
}

func (m *Model) toggleSelected() tea.Cmd {
	row, ok := m.selected()
	if !ok {
		return nil
	}
	return m.enqueue(app.ToggleIntent{ID: row.ID})
}

func (m *Model) handleAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		m.mode = ModeNormal
		m.titleInput.Blur()
		m.dueInput.Blur()
		return m, m.enqueue(app.AddIntent{Text: m.titleInput.Value(), Due: m.dueInput.Value()})

	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil

	case tea.KeyTab, tea.KeyShiftTab:
		if m.titleInput.Focused() {
			m.titleInput.Blur()
			return m, m.dueInput.Focus()
		}
		m.dueInput.Blur()
		return m, m.titleInput.Focus()
	}

	if m.dueInput.Focused() {
		m.dueInput, cmd = m.dueInput.Update(msg)
	} else {
		m.titleInput, cmd = m.titleInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleEditMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		m.mode = ModeNormal
		m.editInput.Blur()
		return m, m.enqueue(app.EditIntent{ID: m.editID, Text: m.editInput.Value()})

	case tea.KeyEsc:
		m.mode = ModeNormal
		m.editInput.Blur()
		return m, nil
	}

	m.editInput, cmd = m.editInput.Update(msg)
	return m, cmd
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	if m.mode == ModeHelp {
		return m.centerDialog(m.dialogStyle.Render(helpText))
	}

	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.mode == ModeAdd {
		b.WriteString(m.titleInput.View())
		b.WriteString("\n")
		b.WriteString(m.dueInput.View())
		b.WriteString("\n")
		b.WriteString(m.helpStyle.Render("Enter: add  Tab: switch field  Esc: cancel"))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderRows())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(views.Filters))
	for i, f := range views.Filters {
		label := fmt.Sprintf("%d %s", i+1, f)
		if f == m.state.CurrentFilter {
			tabs = append(tabs, m.activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, m.tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderRows() string {
	if !m.loaded {
		return "Loading...\n"
	}
	if len(m.view.Rows) == 0 {
		return "No tasks\n"
	}

	var b strings.Builder
	for i, row := range m.view.Rows {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}

		check := "[ ]"
		if row.Completed {
			check = "[✓]"
		}

		text := row.Text
		switch {
		case m.mode == ModeEdit && row.ID == m.editID:
			text = m.editInput.View()
		case row.Completed:
			text = m.completedStyle.Render(text)
		case i == m.cursor:
			text = m.selectedStyle.Render(text)
		}

		line := cursor + " " + check + " " + text
		if label := row.DueLabel(); label != "" {
			line += "  " + m.dueStyle.Render(label)
		}
		line += "  " + m.deleteStyle.Render(views.DeleteControl)
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	left := m.view.Summary()
	if n := m.Pending(); n > 0 {
		left += fmt.Sprintf("  (syncing %d)", n)
	}

	right := "?:help  q:quit"
	var msg string
	switch {
	case m.lastErr != nil:
		msg = m.errorStyle.Render("Error: " + m.lastErr.Error())
	case m.status != "":
		msg = m.status
	}
	if msg != "" {
		right = msg + "  " + right
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

const helpText = `Help - Key Bindings

Navigation:
  j/↓      Move down
  k/↑      Move up

Actions:
  Enter    Toggle completion (also Space)
  a        Add task (Tab switches to due date)
  e        Edit selected task
  d/x      Delete selected task
  r        Reload from the store

Filters:
  1 2 3    All, active, completed
  f        Next filter

General:
  ?        Show this help
  q        Quit

Press any key to close`

func (m *Model) centerDialog(dialog string) string {
	lines := strings.Split(dialog, "\n")
	dialogWidth := 0
	for _, line := range lines {
		if w := lipgloss.Width(line); w > dialogWidth {
			dialogWidth = w
		}
	}

	topPad := (m.height - len(lines)) / 2
	leftPad := (m.width - dialogWidth) / 2
	if topPad < 0 {
		topPad = 0
	}
	if leftPad < 0 {
		leftPad = 0
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("\n", topPad))
	for _, line := range lines {
		b.WriteString(strings.Repeat(" ", leftPad))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
