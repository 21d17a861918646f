package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
)

// ErrAbandoned unwinds a superseded ask after the user navigated back.
var ErrAbandoned = errors.New("tui: step abandoned")

// --- Tea messages ---

// promptMsg carries one question set from the orchestrator into the model.
type promptMsg struct {
	name      string
	questions []prompt.SerializableQuestion
	reply     chan promptReply
}

type promptReply struct {
	answers prompt.Answers
	err     error
}

// stepListMsg updates the sidebar.
type stepListMsg []string

// stateMsg carries a generic state update.
type stateMsg map[string]any

// doneMsg reports the terminal outcome of the run.
type doneMsg struct {
	ok      bool
	message string
	workdir string
}

// UI bridges the session orchestrator and the Bubble Tea program. The
// orchestrator calls from its own goroutine; everything crosses into the
// program as messages.
type UI struct {
	title       string
	description string
	prog        *tea.Program

	// Back rewinds the session; wired to Orchestrator.GoBack.
	Back func(index int, partial prompt.Answers) error
	// Evaluate invokes a stripped question behavior; wired to
	// Orchestrator.EvaluateBehavior.
	Evaluate func(question, method string, args []any) (any, error)
}

// New creates the TUI front-end. Back and Evaluate must be wired before Run.
func New(title, description string) *UI {
	return &UI{title: title, description: description}
}

// Run starts the program on the calling goroutine. start is invoked once
// the event loop is up — the caller passes the supervisor's Start.
func (u *UI) Run(start func()) error {
	m := newModel(u, start)
	u.prog = tea.NewProgram(m, tea.WithAltScreen())
	_, err := u.prog.Run()
	return err
}

// Finish reports the run outcome into the UI (wired to runner.Config.OnDone).
func (u *UI) Finish(ok bool, message, workdir string) {
	if u.prog != nil {
		u.prog.Send(doneMsg{ok: ok, message: message, workdir: workdir})
	}
}

// ShowPrompt implements session.UI.
func (u *UI) ShowPrompt(ctx context.Context, questions []prompt.SerializableQuestion, stepName string) (prompt.Answers, error) {
	if u.prog == nil {
		return nil, fmt.Errorf("tui not running")
	}
	reply := make(chan promptReply, 1)
	u.prog.Send(promptMsg{name: stepName, questions: questions, reply: reply})
	select {
	case r := <-reply:
		return r.answers, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetPromptList implements session.UI.
func (u *UI) SetPromptList(steps []string) {
	if u.prog != nil {
		u.prog.Send(stepListMsg(steps))
	}
}

// SetState implements session.UI.
func (u *UI) SetState(update map[string]any) {
	if u.prog != nil {
		u.prog.Send(stateMsg(update))
	}
}

// --- Model ---

type model struct {
	ui    *UI
	start func()

	steps   []string
	active  *promptMsg
	qIdx    int
	answers prompt.Answers

	input  textinput.Model
	cursor int
	spin   spinner.Model

	status  string
	errText string
	done    bool
	outcome string

	width  int
	height int
}

func newModel(ui *UI, start func()) *model {
	ti := textinput.New()
	ti.CharLimit = 256
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &model{
		ui:     ui,
		start:  start,
		input:  ti,
		spin:   sp,
		status: "starting",
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, func() tea.Msg {
		m.start()
		return nil
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case promptMsg:
		m.active = &msg
		m.qIdx = 0
		m.answers = prompt.Answers{}
		m.errText = ""
		m.status = "waiting for input"
		m.setupQuestion()
		return m, nil

	case stepListMsg:
		m.steps = msg
		return m, nil

	case stateMsg:
		if s, ok := msg["status"].(string); ok {
			m.status = s
		}
		return m, nil

	case doneMsg:
		m.done = true
		if msg.ok {
			m.outcome = fmt.Sprintf("Done. Output written to %s", msg.workdir)
		} else {
			m.outcome = "Failed: " + msg.message
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "enter":
		if m.done {
			return m, tea.Quit
		}
	}

	if m.active == nil {
		return m, nil
	}

	q := m.active.questions[m.qIdx]
	switch msg.String() {
	case "ctrl+b":
		m.goBack()
		return m, nil

	case "up", "k":
		if q.Type == "list" && m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if q.Type == "list" && m.cursor < len(q.Choices)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		m.submitAnswer(q)
		return m, nil
	}

	if q.Type != "list" {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// goBack rewinds to the previous step, carrying the answers already given
// on this one. Order matters: rewinding supersedes the in-flight ask before
// the abandoned reply unblocks it.
func (m *model) goBack() {
	target := len(m.steps) - 2
	if target < 0 || m.ui.Back == nil {
		m.errText = "nothing to go back to"
		return
	}
	if err := m.ui.Back(target, m.answers); err != nil {
		m.errText = err.Error()
		return
	}
	if m.active != nil {
		m.active.reply <- promptReply{err: ErrAbandoned}
		m.active = nil
	}
	m.status = "replaying"
}

// submitAnswer validates and stores the current answer, advancing to the
// next question or completing the step.
func (m *model) submitAnswer(q prompt.SerializableQuestion) {
	value, err := m.currentValue(q)
	if err != nil {
		m.errText = err.Error()
		return
	}

	if _, ok := q.Methods["validate"]; ok && m.ui.Evaluate != nil {
		res, err := m.ui.Evaluate(q.Name, "validate", []any{value})
		if err != nil {
			m.errText = err.Error()
			return
		}
		if msg, bad := validationFailure(res); bad {
			m.errText = msg
			return
		}
	}

	m.errText = ""
	m.answers[q.Name] = value
	m.qIdx++
	if m.qIdx >= len(m.active.questions) {
		m.active.reply <- promptReply{answers: m.answers}
		m.active = nil
		m.status = "generating"
		return
	}
	m.setupQuestion()
}

// currentValue reads the answer for the question being displayed.
func (m *model) currentValue(q prompt.SerializableQuestion) (any, error) {
	switch q.Type {
	case "list":
		if len(q.Choices) == 0 {
			return nil, fmt.Errorf("no choices for %q", q.Name)
		}
		return q.Choices[m.cursor], nil
	case "confirm":
		switch strings.ToLower(strings.TrimSpace(m.input.Value())) {
		case "y", "yes", "true":
			return true, nil
		case "n", "no", "false", "":
			return false, nil
		default:
			return nil, fmt.Errorf("answer y or n")
		}
	default:
		v := m.input.Value()
		if v == "" && q.Default != nil {
			return q.Default, nil
		}
		return v, nil
	}
}

// setupQuestion prepares the input widgets for the question at qIdx.
func (m *model) setupQuestion() {
	q := m.active.questions[m.qIdx]
	m.cursor = 0
	m.input.Reset()
	switch q.Type {
	case "list":
	case "confirm":
		m.input.Placeholder = "y/n"
		m.input.Focus()
	default:
		if s, ok := q.Default.(string); ok {
			m.input.SetValue(s)
		}
		m.input.Placeholder = ""
		m.input.Focus()
	}
}

func (m *model) View() string {
	if m.width == 0 {
		return "loading…"
	}

	sidebar := m.viewSidebar()
	main := m.viewMain()
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)

	status := m.status
	if !m.done && m.active == nil {
		status = m.spin.View() + " " + status
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.ui.title),
		body,
		statusStyle.Render(status),
	)
}

// viewSidebar renders the step list with completion glyphs.
func (m *model) viewSidebar() string {
	width := 24
	var lines []string
	for i, s := range m.steps {
		glyph, style := glyphDone, stepDone
		switch {
		case i == len(m.steps)-1 && m.active != nil:
			glyph, style = glyphCurrent, stepCurrent
		case i == len(m.steps)-1:
			glyph, style = glyphPending, stepPending
		}
		label := runewidth.Truncate(s, width-4, "…")
		pad := width - 4 - runewidth.StringWidth(label)
		if pad < 0 {
			pad = 0
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s %s%s", glyph, label, strings.Repeat(" ", pad))))
	}
	if len(lines) == 0 {
		lines = append(lines, stepPending.Render("(no steps yet)"))
	}
	return sidebarStyle.Render(strings.Join(lines, "\n"))
}

// viewMain renders the outcome, the current question, or a waiting state.
func (m *model) viewMain() string {
	mainWidth := m.width - 28
	if mainWidth < 20 {
		mainWidth = 20
	}

	if m.done {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			m.outcome + "\n\n" + helpStyle.Render("press q to exit"))
	}
	if m.active == nil {
		desc := renderMarkdown(m.ui.description, mainWidth)
		if desc == "" {
			desc = helpStyle.Render("working…")
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(desc)
	}

	q := m.active.questions[m.qIdx]
	var b strings.Builder
	msg := q.Message
	if msg == "" {
		msg = q.Name
	}
	b.WriteString(questionStyle.Render(msg) + "\n\n")

	if q.Type == "list" {
		for i, c := range q.Choices {
			if i == m.cursor {
				b.WriteString(choiceCursor.Render("▸ "+c) + "\n")
			} else {
				b.WriteString("  " + c + "\n")
			}
		}
	} else {
		b.WriteString(m.input.View() + "\n")
	}

	if m.errText != "" {
		b.WriteString("\n" + errorStyle.Render(m.errText) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("enter: next · ctrl+b: back a step · ctrl+c: quit"))
	return lipgloss.NewStyle().Padding(1, 2).Width(mainWidth).Render(b.String())
}

// validationFailure interprets a validate behavior result: true passes,
// false or a non-empty string message fails.
func validationFailure(res any) (string, bool) {
	switch v := res.(type) {
	case bool:
		if v {
			return "", false
		}
		return "invalid value", true
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	default:
		return "", false
	}
}
