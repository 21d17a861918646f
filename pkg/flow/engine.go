package flow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/expr-lang/expr"

	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
	"github.com/sushiljain1989/yeoman-ui/pkg/runner"
)

// Engine executes one flow definition as a forward-only generator: it walks
// the steps in order, asks each question set exactly once, and scaffolds the
// declared outputs into the working directory. It keeps no resumption point;
// rewinding means running it again.
type Engine struct {
	flow *Flow

	mu   sync.Mutex
	wrap func(ctx context.Context, next func(context.Context) error) error
}

// NewEngine wraps a validated flow definition.
func NewEngine(fl *Flow) *Engine {
	return &Engine{flow: fl}
}

// Name returns the flow's declared name.
func (e *Engine) Name() string {
	return e.flow.Meta.Name
}

// Description returns the flow's markdown description.
func (e *Engine) Description() string {
	return e.flow.Meta.Description
}

// Run executes the flow end to end. Every step produces exactly one ask —
// steps whose condition is false ask with an empty question set so the step
// sequence stays deterministic for replay.
func (e *Engine) Run(ctx context.Context, workdir string, ask runner.Asker) error {
	answers := prompt.Answers{}

	for i, step := range e.flow.Steps {
		visible, err := e.evalWhen(step.When, answers)
		if err != nil {
			return fmt.Errorf("step %d condition: %w", i, err)
		}

		var questions []prompt.Question
		if visible {
			questions, err = e.buildQuestions(step, answers)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}

		got, err := ask(ctx, questions)
		if err != nil {
			return err
		}

		for _, q := range step.Questions {
			v, ok := got[q.Name]
			if !ok {
				continue
			}
			if q.Filter != "" {
				v, err = runExpr(q.Filter, v, answers)
				if err != nil {
					return fmt.Errorf("filter %q: %w", q.Name, err)
				}
			}
			answers[q.Name] = v
		}
	}

	if err := e.renderOutputs(workdir, answers); err != nil {
		return err
	}
	if e.flow.Install != nil {
		if err := e.runInstall(ctx, workdir); err != nil {
			return fmt.Errorf("install: %w", err)
		}
	}
	return nil
}

// InterceptInstall installs a one-shot wrapper around the install
// invocation and returns a restore func. Implements runner.Installer.
func (e *Engine) InterceptInstall(fn func(ctx context.Context, next func(context.Context) error) error) (restore func()) {
	e.mu.Lock()
	prev := e.wrap
	e.wrap = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.wrap = prev
		e.mu.Unlock()
	}
}

// buildQuestions turns a step definition into live questions: templated
// defaults resolved against prior answers, validate/filter expressions
// bound as dynamic behaviors.
func (e *Engine) buildQuestions(step StepDef, answers prompt.Answers) ([]prompt.Question, error) {
	questions := make([]prompt.Question, 0, len(step.Questions))
	for _, def := range step.Questions {
		q := prompt.Question{
			Name:    def.Name,
			Type:    def.Type,
			Message: def.Message,
			Default: def.Default,
			Choices: def.Choices,
		}
		if s, ok := def.Default.(string); ok {
			resolved, err := resolveTemplate(s, answers)
			if err != nil {
				return nil, fmt.Errorf("default for %q: %w", def.Name, err)
			}
			q.Default = resolved
		}
		if def.Validate != "" {
			q.Behaviors = behaviors(q.Behaviors, "validate", def.Validate, answers)
		}
		if def.Filter != "" {
			q.Behaviors = behaviors(q.Behaviors, "filter", def.Filter, answers)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// behaviors adds an expr-backed behavior under the given method name.
func behaviors(m map[string]prompt.BehaviorFunc, method, src string, answers prompt.Answers) map[string]prompt.BehaviorFunc {
	if m == nil {
		m = make(map[string]prompt.BehaviorFunc)
	}
	m[method] = func(args ...any) (any, error) {
		var value any
		if len(args) > 0 {
			value = args[0]
		}
		return runExpr(src, value, answers)
	}
	return m
}

// runExpr evaluates an expression with `value` and `answers` in scope.
func runExpr(src string, value any, answers prompt.Answers) (any, error) {
	program, err := expr.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	env := map[string]any{
		"value":   value,
		"answers": map[string]any(answers),
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", src, err)
	}
	return out, nil
}

// evalWhen evaluates a step condition. Empty means always visible.
func (e *Engine) evalWhen(when string, answers prompt.Answers) (bool, error) {
	when = strings.TrimSpace(when)
	if when == "" {
		return true, nil
	}
	out, err := runExpr(when, nil, answers)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T)", when, out)
	}
	return b, nil
}

// renderOutputs writes the scaffolded files into the working directory.
// Paths are confined to workdir.
func (e *Engine) renderOutputs(workdir string, answers prompt.Answers) error {
	for _, out := range e.flow.Outputs {
		rel, err := resolveTemplate(out.Path, answers)
		if err != nil {
			return fmt.Errorf("output path %q: %w", out.Path, err)
		}
		path := filepath.Join(workdir, filepath.Clean("/"+rel))
		content, err := resolveTemplate(out.Content, answers)
		if err != nil {
			return fmt.Errorf("output %q: %w", rel, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("output %q: %w", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("output %q: %w", rel, err)
		}
	}
	return nil
}

// runInstall executes the install command in the working directory, routed
// through the one-shot interceptor when one is registered.
func (e *Engine) runInstall(ctx context.Context, workdir string) error {
	next := func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, e.flow.Install.Argv[0], e.flow.Install.Argv[1:]...)
		cmd.Dir = workdir
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("run %v: %w", e.flow.Install.Argv, err)
		}
		return nil
	}

	e.mu.Lock()
	wrap := e.wrap
	e.mu.Unlock()
	if wrap != nil {
		return wrap(ctx, next)
	}
	return next(ctx)
}

// resolveTemplate renders a Go template string against the answer set.
// Fast path for literals without template markers.
func resolveTemplate(tmpl string, answers prompt.Answers) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	t, err := template.New("").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("template parse: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any(answers)); err != nil {
		return "", fmt.Errorf("template eval: %w", err)
	}
	return buf.String(), nil
}
