// Package runner supervises underlying generator runs: it starts them,
// normalizes their outcomes, restarts them for back-navigation replay, and
// drops callbacks from runs that have been superseded.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
	"github.com/sushiljain1989/yeoman-ui/pkg/session"
)

// Asker is the single entry point a generator uses to obtain answers.
// It blocks until answers are available (served from replay or from the
// live user) and is never called concurrently within one run.
type Asker func(ctx context.Context, questions []prompt.Question) (prompt.Answers, error)

// Generator is the forward-only underlying engine. Given a working
// directory it produces an ordered, data-dependent sequence of question
// sets through ask and signals completion or failure exactly once by
// returning. It cannot be paused or rewound — going back means running it
// again from scratch.
type Generator interface {
	Name() string
	Run(ctx context.Context, workdir string, ask Asker) error
}

// Installer is implemented by generators with a post-generation install
// step. InterceptInstall wraps the next install invocation with fn — fn
// receives the original invocation and decides when to call it — and
// returns a restore func that puts the original back. The supervisor uses
// this as a scoped, one-shot wrap to surface an "installing" state, never a
// permanent replacement.
type Installer interface {
	InterceptInstall(fn func(ctx context.Context, next func(context.Context) error) error) (restore func())
}

// FailureKind classifies a failed run.
type FailureKind string

const (
	// FailureSetup — the working directory could not be prepared or the
	// generator could not be instantiated.
	FailureSetup FailureKind = "setup"
	// FailureGenerator — the engine signalled an error mid-run.
	FailureGenerator FailureKind = "generator"
	// FailureTransport — the live UI did not respond within the allowed
	// window. Fatal to the run; never retried automatically.
	FailureTransport FailureKind = "transport"
)

// Outcome is the terminal report of one generator run.
type Outcome struct {
	RunID     string
	Generator string
	Workdir   string
	OK        bool
	Kind      FailureKind
	Message   string
}

// Supervisor owns at most one active generator run. A new start implicitly
// supersedes any prior run: late callbacks from superseded runs are ignored.
type Supervisor struct {
	gen     Generator
	orch    *session.Orchestrator
	ui      session.UI
	workdir string
	onDone  func(Outcome)
	logger  *slog.Logger

	mu    sync.Mutex
	ctx   context.Context
	token int
	runID string
}

// Config carries supervisor construction options.
type Config struct {
	Workdir string
	UI      session.UI
	OnDone  func(Outcome)
	Logger  *slog.Logger
}

// New creates a supervisor for one generator selection and registers itself
// as the orchestrator's restarter.
func New(gen Generator, orch *session.Orchestrator, cfg Config) *Supervisor {
	s := &Supervisor{
		gen:     gen,
		orch:    orch,
		ui:      cfg.UI,
		workdir: cfg.Workdir,
		onDone:  cfg.OnDone,
		logger:  cfg.Logger,
	}
	orch.SetRestarter(s)
	return s
}

// Start begins a brand-new logical session for the generator selection:
// history and replay state are discarded, then the engine runs end to end.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.runID = GenerateRunID()
	s.mu.Unlock()

	s.orch.Reset()
	s.logger.Info("starting generator", "generator", s.gen.Name(), "runId", s.runID, "workdir", s.workdir)
	s.launch(ctx)
}

// Restart relaunches the engine for the same selection after a
// back-navigation request. Only the process restarts: history, replay state
// and pending partial answers persist so the recorded prefix can be
// replayed.
func (s *Supervisor) Restart() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	s.logger.Info("restarting generator for replay", "generator", s.gen.Name())
	s.launch(ctx)
}

// launch supersedes any active run and starts a new one in a goroutine.
func (s *Supervisor) launch(ctx context.Context) {
	s.mu.Lock()
	s.token++
	token := s.token
	runID := s.runID
	s.mu.Unlock()

	s.orch.ResetRun()

	go func() {
		err := s.runOnce(ctx)

		s.mu.Lock()
		stale := token != s.token
		s.mu.Unlock()
		if stale {
			s.logger.Debug("ignoring callback from superseded run", "runId", runID)
			return
		}
		if errors.Is(err, session.ErrSuperseded) {
			// A back-navigation restart took over; its run reports instead.
			return
		}
		s.report(runID, err)
	}()
}

// runOnce prepares the working directory and drives the generator to
// completion or failure.
func (s *Supervisor) runOnce(ctx context.Context) error {
	if err := os.MkdirAll(s.workdir, 0o755); err != nil {
		return &setupError{err: fmt.Errorf("prepare working directory %q: %w", s.workdir, err)}
	}

	if inst, ok := s.gen.(Installer); ok {
		restore := inst.InterceptInstall(func(ctx context.Context, next func(context.Context) error) error {
			s.setState(map[string]any{"status": "installing"})
			defer s.setState(map[string]any{"status": "generating"})
			return next(ctx)
		})
		defer restore()
	}

	return s.gen.Run(ctx, s.workdir, s.orch.Ask)
}

// report normalizes the run result and delivers the terminal outcome.
// No failure kind is retried automatically; retries are user actions.
func (s *Supervisor) report(runID string, err error) {
	out := Outcome{
		RunID:     runID,
		Generator: s.gen.Name(),
		Workdir:   s.workdir,
	}
	switch {
	case err == nil:
		out.OK = true
		s.logger.Info("generator finished", "generator", out.Generator, "runId", runID, "workdir", s.workdir)
	default:
		out.Kind, out.Message = normalize(err)
		s.logger.Error("generator failed", "generator", out.Generator, "runId", runID, "kind", string(out.Kind), "err", err)
	}
	s.setState(map[string]any{"status": statusFor(out), "workdir": s.workdir})
	if s.onDone != nil {
		s.onDone(out)
	}
}

func (s *Supervisor) setState(update map[string]any) {
	if s.ui != nil {
		s.ui.SetState(update)
	}
}

func statusFor(out Outcome) string {
	if out.OK {
		return "done"
	}
	return "failed"
}

// setupError marks errors raised before the generator itself ran.
type setupError struct{ err error }

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

// normalize maps a run error to its failure kind and a human-readable
// description.
func normalize(err error) (FailureKind, string) {
	var se *setupError
	switch {
	case errors.As(err, &se):
		return FailureSetup, se.err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTransport, "the user interface did not respond in time: " + err.Error()
	default:
		return FailureGenerator, err.Error()
	}
}
