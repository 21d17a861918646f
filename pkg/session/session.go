// Package session implements the orchestrator that sits between the
// forward-only generator engine and the live UI. It intercepts every ask,
// records the exchange, and — after a back-navigation restart — transparently
// replays recorded answers until control can be handed back to the user.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sushiljain1989/yeoman-ui/pkg/history"
	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
	"github.com/sushiljain1989/yeoman-ui/pkg/replay"
)

// PromptTimeout bounds one live UI round trip. It tolerates a human
// thinking, not network latency; exceeding it is a fatal transport failure.
const PromptTimeout = time.Hour

// ErrSuperseded is returned to an engine run whose in-flight ask was
// abandoned by a back-navigation restart. The superseded run must unwind;
// its late callbacks are ignored by the supervisor.
var ErrSuperseded = errors.New("session: run superseded")

// UI is the live front-end boundary. Question sets crossing it are
// sanitized: dynamic behaviors are stripped and invoked locally by name
// through EvaluateBehavior.
type UI interface {
	// ShowPrompt displays one question set and blocks until the user
	// answers or ctx expires.
	ShowPrompt(ctx context.Context, questions []prompt.SerializableQuestion, stepName string) (prompt.Answers, error)
	// SetPromptList announces the ordered step names of the session so far.
	SetPromptList(steps []string)
	// SetState pushes a generic state update (status changes, workdir, …).
	SetState(update map[string]any)
}

// Restarter triggers a full restart of the underlying engine run for the
// same generator selection. Implemented by the run supervisor.
type Restarter interface {
	Restart()
}

// Orchestrator owns the history buffer and replay machine for one logical
// session (generator selection to success/failure). Asks are serialized by
// the single-active-run invariant; the mutex only protects state touched by
// GoBack and EvaluateBehavior arriving from the UI while an ask is blocked.
type Orchestrator struct {
	mu        sync.Mutex
	ui        UI
	buf       *history.Buffer
	machine   *replay.Machine
	registry  *prompt.Registry
	restarter Restarter
	logger    *slog.Logger
	timeout   time.Duration

	promptCount int // per-run ask counter, resets on every engine restart
	runSeq      int // bumped when an in-flight ask is superseded
	current     []prompt.Question
}

// New creates an orchestrator bound to a UI front-end.
func New(ui UI, registry *prompt.Registry, logger *slog.Logger) *Orchestrator {
	if registry == nil {
		registry = prompt.NewRegistry()
	}
	return &Orchestrator{
		ui:       ui,
		buf:      history.New(),
		machine:  replay.New(),
		registry: registry,
		logger:   logger,
		timeout:  PromptTimeout,
	}
}

// SetRestarter wires the run supervisor in after construction (the two
// reference each other).
func (o *Orchestrator) SetRestarter(r Restarter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.restarter = r
}

// SetPromptTimeout overrides the live round-trip timeout. Tests use this.
func (o *Orchestrator) SetPromptTimeout(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeout = d
}

// Ask intercepts one request for user input from the underlying engine.
// It either serves recorded answers (while replaying) or forwards the
// question set to the live UI and records the exchange.
func (o *Orchestrator) Ask(ctx context.Context, questions []prompt.Question) (prompt.Answers, error) {
	// No-op step: nothing to show, nothing to record. Answered before the
	// counter moves so replay positions stay aligned with buffer indices.
	if len(questions) == 0 {
		return prompt.Answers{}, nil
	}

	o.mu.Lock()
	run := o.runSeq
	position := o.promptCount
	o.promptCount++
	name := prompt.StepName(questions, position)
	dec := o.machine.Decide(o.buf, position, questions)
	o.current = questions

	if dec.Mode == replay.ModeServeRecorded {
		// Re-write the same content so the buffer stays consistent across
		// however many restarts it took to get here.
		o.buf.Set(position, prompt.StepRecord{Name: name, Questions: questions, Answers: dec.Record.Answers})
		o.mu.Unlock()
		o.logger.Debug("replay: served recorded answers", "step", name, "position", position)
		return dec.Record.Answers.Clone(), nil
	}

	shown := questions
	if dec.Mode == replay.ModeLiveSeeded && len(dec.Seed) > 0 {
		shown = seedQuestions(questions, dec.Seed)
		o.logger.Debug("replay: ending, seeding partial answers", "step", name, "answers", len(dec.Seed))
	}
	wire := prompt.Sanitize(shown)
	steps := o.stepListLocked(name, position)
	o.mu.Unlock()

	o.ui.SetPromptList(steps)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	answers, err := o.ui.ShowPrompt(ctx, wire, name)

	o.mu.Lock()
	defer o.mu.Unlock()
	if run != o.runSeq {
		// A back-navigation restart happened while we were waiting.
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("show prompt %q: %w", name, err)
	}
	o.buf.Set(position, prompt.StepRecord{Name: name, Questions: questions, Answers: answers.Clone()})
	o.machine.StepDone()
	return answers, nil
}

// GoBack rewinds the session to the recorded step at target. The partial
// answers of the step being left (if any) are held and merged into the step
// the user lands on after replay. The underlying engine is restarted from
// scratch; the in-flight ask, if one is blocked on the UI, is superseded.
func (o *Orchestrator) GoBack(target int, partial prompt.Answers) error {
	o.mu.Lock()
	if target < 0 || target >= o.buf.Len() {
		n := o.buf.Len()
		o.mu.Unlock()
		return fmt.Errorf("go back: no recorded step at index %d (have %d)", target, n)
	}
	o.machine.Begin(partial)
	o.buf.Truncate(target)
	o.runSeq++
	r := o.restarter
	o.mu.Unlock()

	o.logger.Info("navigating back", "target", target, "partialAnswers", len(partial))
	o.ui.SetState(map[string]any{"status": "replaying", "step": target})
	if r != nil {
		r.Restart()
	}
	return nil
}

// EvaluateBehavior invokes a named dynamic behavior of a question in the
// current step — behaviors never cross the UI boundary as data, so the UI
// calls back here by name. Failures are logged and returned, never
// swallowed; they do not terminate the run.
func (o *Orchestrator) EvaluateBehavior(questionName, method string, args []any) (result any, err error) {
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()

	var q *prompt.Question
	for i := range current {
		if current[i].Name == questionName {
			q = &current[i]
			break
		}
	}
	if q == nil {
		err = fmt.Errorf("evaluate %s of question %q: question not in current step", method, questionName)
		o.logger.Error("behavior evaluation failed", "err", err)
		return nil, err
	}

	fn, err := o.registry.Resolve(q, method)
	if err != nil {
		err = fmt.Errorf("evaluate %s of question %q: %w", method, questionName, err)
		o.logger.Error("behavior evaluation failed", "err", err)
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate %s of question %q: panic: %v", method, questionName, r)
			o.logger.Error("behavior evaluation failed", "err", err)
			result = nil
		}
	}()
	result, err = fn(args...)
	if err != nil {
		err = fmt.Errorf("evaluate %s of question %q: %w", method, questionName, err)
		o.logger.Error("behavior evaluation failed", "err", err)
		return nil, err
	}
	return result, nil
}

// ResetRun prepares for a new underlying engine run without touching the
// logical session: the prompt counter restarts at zero while history and
// replay state persist. Called by the supervisor on every run start.
func (o *Orchestrator) ResetRun() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.promptCount = 0
	o.current = nil
}

// Reset discards the logical session: history cleared, replay back to idle,
// any in-flight ask superseded. Called on fresh generator selection only.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf.Clear()
	o.machine.Reset()
	o.promptCount = 0
	o.current = nil
	o.runSeq++
}

// History returns the recorded steps of the logical session in order.
func (o *Orchestrator) History() []prompt.StepRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Records()
}

// ReplayState exposes the current replay phase (for status surfaces).
func (o *Orchestrator) ReplayState() replay.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.machine.State()
}

// stepListLocked builds the ordered step names shown in the UI's step list:
// everything recorded so far plus the step about to be asked.
func (o *Orchestrator) stepListLocked(name string, position int) []string {
	var steps []string
	for i, rec := range o.buf.Records() {
		if i >= position {
			break
		}
		steps = append(steps, rec.Name)
	}
	return append(steps, name)
}

// seedQuestions copies the question set with defaults overridden by the
// captured partial answers, so the user sees what they had already typed.
func seedQuestions(questions []prompt.Question, seed prompt.Answers) []prompt.Question {
	out := make([]prompt.Question, len(questions))
	copy(out, questions)
	for i := range out {
		if v, ok := seed[out[i].Name]; ok {
			out[i].Default = v
		}
	}
	return out
}
