// Package console implements a plain-terminal wizard front-end on readline.
// One question at a time; ":back <step>" abandons the current step and
// rewinds, carrying along whatever was already answered.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
)

// ErrAbandoned is returned from ShowPrompt when the user navigated away
// from the step instead of completing it. The superseded run unwinds on it.
var ErrAbandoned = errors.New("console: step abandoned")

// UI is a readline-backed session.UI.
type UI struct {
	promptMu sync.Mutex // serializes terminal use across run restarts
	rl       *readline.Instance
	out      io.Writer
	steps    []string // last announced step list, for bare ":back"

	// Back rewinds the session; wired to Orchestrator.GoBack.
	Back func(index int, partial prompt.Answers) error
	// Evaluate invokes a stripped question behavior by name; wired to
	// Orchestrator.EvaluateBehavior.
	Evaluate func(question, method string, args []any) (any, error)
}

// New creates a console UI on the process terminal.
func New() (*UI, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	return &UI{rl: rl, out: rl.Stdout()}, nil
}

// Close releases the terminal.
func (u *UI) Close() error {
	return u.rl.Close()
}

// ShowPrompt walks the question set one question at a time and returns the
// collected answers.
func (u *UI) ShowPrompt(ctx context.Context, questions []prompt.SerializableQuestion, stepName string) (prompt.Answers, error) {
	u.promptMu.Lock()
	defer u.promptMu.Unlock()

	fmt.Fprintf(u.out, "\n── %s ──\n", stepName)
	answers := prompt.Answers{}

	for i := 0; i < len(questions); {
		q := questions[i]
		value, back, err := u.askOne(q)
		if err != nil {
			return nil, err
		}
		if back != nil {
			if u.Back == nil {
				continue
			}
			if err := u.Back(back.index, answers); err != nil {
				fmt.Fprintf(u.out, "cannot go back: %v\n", err)
				continue // re-ask the same question
			}
			return nil, ErrAbandoned
		}
		answers[q.Name] = value
		i++
	}
	return answers, nil
}

// backRequest carries the target of a ":back" command.
type backRequest struct{ index int }

// askOne prompts for a single question until a valid answer (or a back
// request) is produced.
func (u *UI) askOne(q prompt.SerializableQuestion) (any, *backRequest, error) {
	u.rl.Config.AutoComplete = choiceCompleter(q)
	defer func() { u.rl.Config.AutoComplete = nil }()

	for {
		fmt.Fprint(u.out, renderQuestion(q))
		u.rl.SetPrompt(fmt.Sprintf("%s> ", q.Name))
		line, err := u.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil, nil, fmt.Errorf("prompt %q: %w", q.Name, io.EOF)
			}
			return nil, nil, fmt.Errorf("prompt %q: %w", q.Name, err)
		}
		line = strings.TrimSpace(line)

		if target, ok := u.parseBack(line); ok {
			return nil, &backRequest{index: target}, nil
		}

		value, err := coerce(q, line)
		if err != nil {
			fmt.Fprintf(u.out, "  %v\n", err)
			continue
		}

		if _, wantsValidate := q.Methods["validate"]; wantsValidate && u.Evaluate != nil {
			res, err := u.Evaluate(q.Name, "validate", []any{value})
			if err != nil {
				fmt.Fprintf(u.out, "  %v\n", err)
				continue
			}
			if msg, bad := validationFailure(res); bad {
				fmt.Fprintf(u.out, "  %s\n", msg)
				continue
			}
		}
		return value, nil, nil
	}
}

// SetPromptList prints the step breadcrumb.
func (u *UI) SetPromptList(steps []string) {
	u.steps = steps
	if len(steps) == 0 {
		return
	}
	fmt.Fprintf(u.out, "\nsteps: %s\n", strings.Join(steps, " → "))
}

// SetState surfaces status transitions.
func (u *UI) SetState(update map[string]any) {
	if status, ok := update["status"].(string); ok {
		fmt.Fprintf(u.out, "[%s]\n", status)
	}
}

// parseBack recognizes ":back" (previous step) and ":back N" (zero-based
// step index).
func (u *UI) parseBack(line string) (int, bool) {
	if !strings.HasPrefix(line, ":back") {
		return 0, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, ":back"))
	if rest == "" {
		if len(u.steps) < 2 {
			return 0, false
		}
		return len(u.steps) - 2, true
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// renderQuestion formats the question header: message, default, choices.
func renderQuestion(q prompt.SerializableQuestion) string {
	var b strings.Builder
	msg := q.Message
	if msg == "" {
		msg = q.Name
	}
	fmt.Fprintf(&b, "%s", msg)
	if q.Default != nil && q.Default != "" {
		fmt.Fprintf(&b, " [%v]", q.Default)
	}
	b.WriteString("\n")
	for i, c := range q.Choices {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, c)
	}
	return b.String()
}

// coerce converts the raw input line into the question's answer value.
func coerce(q prompt.SerializableQuestion, line string) (any, error) {
	if line == "" && q.Default != nil {
		return q.Default, nil
	}
	switch q.Type {
	case "confirm":
		switch strings.ToLower(line) {
		case "y", "yes", "true":
			return true, nil
		case "n", "no", "false":
			return false, nil
		case "":
			return false, nil
		default:
			return nil, fmt.Errorf("answer y or n")
		}
	case "list":
		if n, err := strconv.Atoi(line); err == nil {
			if n < 1 || n > len(q.Choices) {
				return nil, fmt.Errorf("choose 1-%d", len(q.Choices))
			}
			return q.Choices[n-1], nil
		}
		for _, c := range q.Choices {
			if c == line {
				return c, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of the choices", line)
	default:
		return line, nil
	}
}

// validationFailure interprets a validate behavior result: true passes,
// false or a string message fails.
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

// choiceCompleter offers the list choices as completions.
func choiceCompleter(q prompt.SerializableQuestion) readline.AutoCompleter {
	if len(q.Choices) == 0 {
		return nil
	}
	completer := readline.NewPrefixCompleter()
	for _, c := range q.Choices {
		completer.Children = append(completer.Children, readline.PcItem(c))
	}
	return completer
}
