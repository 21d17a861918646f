package runner

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sushiljain1989/yeoman-ui/pkg/logging"
	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
	"github.com/sushiljain1989/yeoman-ui/pkg/session"
)

// scriptedGenerator asks a fixed sequence of single-question steps each run.
type scriptedGenerator struct {
	name      string
	steps     []string
	runErr    error
	install   func(ctx context.Context) error
	intercept func(ctx context.Context, next func(context.Context) error) error

	mu   sync.Mutex
	runs int
}

func (g *scriptedGenerator) Name() string { return g.name }

func (g *scriptedGenerator) Run(ctx context.Context, workdir string, ask Asker) error {
	g.mu.Lock()
	g.runs++
	g.mu.Unlock()

	for _, name := range g.steps {
		if _, err := ask(ctx, []prompt.Question{{Name: name, Type: "input"}}); err != nil {
			return err
		}
	}
	if g.install != nil {
		inst := g.install
		if g.intercept != nil {
			orig := inst
			inst = func(ctx context.Context) error { return g.intercept(ctx, orig) }
		}
		if err := inst(ctx); err != nil {
			return err
		}
	}
	return g.runErr
}

func (g *scriptedGenerator) InterceptInstall(fn func(ctx context.Context, next func(context.Context) error) error) func() {
	g.mu.Lock()
	g.intercept = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.intercept = nil
		g.mu.Unlock()
	}
}

func (g *scriptedGenerator) runCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.runs
}

// autoUI answers every prompt immediately with a canned value.
type autoUI struct {
	mu     sync.Mutex
	shows  int
	states []map[string]any
}

func (u *autoUI) ShowPrompt(ctx context.Context, questions []prompt.SerializableQuestion, stepName string) (prompt.Answers, error) {
	u.mu.Lock()
	u.shows++
	u.mu.Unlock()
	a := prompt.Answers{}
	for _, q := range questions {
		a[q.Name] = "v"
	}
	return a, nil
}

func (u *autoUI) SetPromptList(steps []string) {}

func (u *autoUI) SetState(update map[string]any) {
	u.mu.Lock()
	u.states = append(u.states, update)
	u.mu.Unlock()
}

func (u *autoUI) statuses() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []string
	for _, st := range u.states {
		if s, ok := st["status"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
		return Outcome{}
	}
}

func TestGenerateRunIDFormat(t *testing.T) {
	pat := regexp.MustCompile(`^\d{8}T\d{6}-[0-9a-f]{8}$`)
	a, b := GenerateRunID(), GenerateRunID()
	for _, id := range []string{a, b} {
		if !pat.MatchString(id) {
			t.Errorf("run ID %q does not match expected shape", id)
		}
	}
	if a == b {
		t.Errorf("consecutive run IDs collided: %q", a)
	}
}

// TestSupervisorRunsToCompletion drives a two-step generator end to end and
// checks the terminal outcome.
func TestSupervisorRunsToCompletion(t *testing.T) {
	ui := &autoUI{}
	orch := session.New(ui, prompt.NewRegistry(), logging.NewNop())
	gen := &scriptedGenerator{name: "webapp", steps: []string{"projectName", "port"}}

	done := make(chan Outcome, 1)
	workdir := filepath.Join(t.TempDir(), "out")
	sup := New(gen, orch, Config{
		Workdir: workdir,
		UI:      ui,
		OnDone:  func(out Outcome) { done <- out },
		Logger:  logging.NewNop(),
	})

	sup.Start(context.Background())
	out := waitOutcome(t, done)

	if !out.OK {
		t.Fatalf("outcome = %+v, want success", out)
	}
	if out.Generator != "webapp" || out.Workdir != workdir {
		t.Errorf("outcome identity = %+v", out)
	}
	if out.RunID == "" {
		t.Error("outcome has no run ID")
	}
	if got := len(orch.History()); got != 2 {
		t.Errorf("history = %d records, want 2", got)
	}
}

// TestSupervisorRestartReplaysHistory triggers a back-navigation restart from
// inside a run and verifies the second run replays without extra UI round
// trips for the recorded prefix.
func TestSupervisorRestartReplaysHistory(t *testing.T) {
	ui := &autoUI{}
	orch := session.New(ui, prompt.NewRegistry(), logging.NewNop())

	// The generator navigates back after its second answer, once.
	var once sync.Once
	backErr := make(chan error, 1)
	steps := []string{"projectName", "dbKind", "port"}
	gen := &funcGenerator{name: "webapp", run: func(ctx context.Context, workdir string, ask Asker) error {
		for i, name := range steps {
			if _, err := ask(ctx, []prompt.Question{{Name: name, Type: "input"}}); err != nil {
				return err
			}
			if i == 1 {
				var goneBack bool
				once.Do(func() {
					goneBack = true
					backErr <- orch.GoBack(1, prompt.Answers{"dbKind": "sqlite"})
				})
				if goneBack {
					// The restart superseded this run; unwind like a real
					// engine whose next ask fails.
					return session.ErrSuperseded
				}
			}
		}
		return nil
	}}

	done := make(chan Outcome, 1)
	sup := New(gen, orch, Config{
		Workdir: t.TempDir(),
		UI:      ui,
		OnDone:  func(out Outcome) { done <- out },
		Logger:  logging.NewNop(),
	})

	sup.Start(context.Background())
	out := waitOutcome(t, done)

	if err := <-backErr; err != nil {
		t.Fatalf("GoBack: %v", err)
	}
	if !out.OK {
		t.Fatalf("outcome = %+v, want success", out)
	}
	// Live round trips: 2 before the back request, then 2 for the replayed
	// session's live tail (dbKind again, port). projectName is served from
	// history.
	ui.mu.Lock()
	shows := ui.shows
	ui.mu.Unlock()
	if shows != 4 {
		t.Errorf("UI round trips = %d, want 4", shows)
	}
	if got := len(orch.History()); got != 3 {
		t.Errorf("history = %d records, want 3", got)
	}
}

// funcGenerator adapts a bare run function to the Generator interface.
type funcGenerator struct {
	name string
	run  func(ctx context.Context, workdir string, ask Asker) error
}

func (g *funcGenerator) Name() string { return g.name }
func (g *funcGenerator) Run(ctx context.Context, workdir string, ask Asker) error {
	return g.run(ctx, workdir, ask)
}

// TestSupersededRunNeverReports verifies the outcome of a run superseded by a
// fresh Start is dropped, not delivered.
func TestSupersededRunNeverReports(t *testing.T) {
	ui := &autoUI{}
	orch := session.New(ui, prompt.NewRegistry(), logging.NewNop())

	blocked := make(chan struct{})
	release := make(chan struct{})
	first := true
	gen := &funcGenerator{name: "slow", run: func(ctx context.Context, workdir string, ask Asker) error {
		if first {
			first = false
			close(blocked)
			<-release
			return errors.New("late failure from old run")
		}
		return nil
	}}

	done := make(chan Outcome, 2)
	sup := New(gen, orch, Config{
		Workdir: t.TempDir(),
		UI:      ui,
		OnDone:  func(out Outcome) { done <- out },
		Logger:  logging.NewNop(),
	})

	sup.Start(context.Background())
	<-blocked
	sup.Start(context.Background()) // supersedes the blocked run
	close(release)

	out := waitOutcome(t, done)
	if !out.OK {
		t.Fatalf("first delivered outcome = %+v, want the fresh run's success", out)
	}
	select {
	case extra := <-done:
		t.Fatalf("superseded run reported anyway: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestInstallInterception verifies the supervisor wraps the install step with
// installing/generating state updates and restores the original afterwards.
func TestInstallInterception(t *testing.T) {
	ui := &autoUI{}
	orch := session.New(ui, prompt.NewRegistry(), logging.NewNop())

	installed := false
	gen := &scriptedGenerator{
		name:    "webapp",
		steps:   []string{"projectName"},
		install: func(ctx context.Context) error { installed = true; return nil },
	}

	done := make(chan Outcome, 1)
	sup := New(gen, orch, Config{
		Workdir: t.TempDir(),
		UI:      ui,
		OnDone:  func(out Outcome) { done <- out },
		Logger:  logging.NewNop(),
	})

	sup.Start(context.Background())
	out := waitOutcome(t, done)

	if !out.OK {
		t.Fatalf("outcome = %+v, want success", out)
	}
	if !installed {
		t.Fatal("install step never ran")
	}
	statuses := ui.statuses()
	var sawInstalling, sawGenerating bool
	for _, s := range statuses {
		if s == "installing" {
			sawInstalling = true
		}
		if s == "generating" && sawInstalling {
			sawGenerating = true
		}
	}
	if !sawInstalling || !sawGenerating {
		t.Errorf("statuses = %v, want installing then generating", statuses)
	}
	gen.mu.Lock()
	restored := gen.intercept == nil
	gen.mu.Unlock()
	if !restored {
		t.Error("install interception was not restored after the run")
	}
}

// TestFailureKinds checks error normalization for each failure class.
func TestFailureKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"setup", &setupError{err: errors.New("mkdir failed")}, FailureSetup},
		{"transport", context.DeadlineExceeded, FailureTransport},
		{"wrapped transport", errors.Join(errors.New("show prompt"), context.DeadlineExceeded), FailureTransport},
		{"generator", errors.New("template render failed"), FailureGenerator},
	}
	for _, tc := range cases {
		kind, msg := normalize(tc.err)
		if kind != tc.want {
			t.Errorf("%s: kind = %v, want %v", tc.name, kind, tc.want)
		}
		if msg == "" {
			t.Errorf("%s: empty message", tc.name)
		}
	}
}

// TestGeneratorFailureOutcome verifies an engine error surfaces as a
// generator failure with the failed status pushed to the UI.
func TestGeneratorFailureOutcome(t *testing.T) {
	ui := &autoUI{}
	orch := session.New(ui, prompt.NewRegistry(), logging.NewNop())
	gen := &scriptedGenerator{name: "webapp", steps: []string{"projectName"}, runErr: errors.New("disk full")}

	done := make(chan Outcome, 1)
	sup := New(gen, orch, Config{
		Workdir: t.TempDir(),
		UI:      ui,
		OnDone:  func(out Outcome) { done <- out },
		Logger:  logging.NewNop(),
	})

	sup.Start(context.Background())
	out := waitOutcome(t, done)

	if out.OK {
		t.Fatal("outcome OK for a failed run")
	}
	if out.Kind != FailureGenerator {
		t.Errorf("kind = %v, want %v", out.Kind, FailureGenerator)
	}
	if out.Message != "disk full" {
		t.Errorf("message = %q", out.Message)
	}
	statuses := ui.statuses()
	if len(statuses) == 0 || statuses[len(statuses)-1] != "failed" {
		t.Errorf("statuses = %v, want trailing failed", statuses)
	}
}
