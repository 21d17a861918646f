// Package prompt defines the question/answer data model shared by the
// wizard engine, the replay machinery and the UI front-ends.
package prompt

import (
	"fmt"
	"strings"
)

// FunctionPlaceholder replaces non-serializable question fields (validators,
// choice filters) before a question crosses the UI transport. The UI calls
// back by name when it needs to invoke one (see Registry).
const FunctionPlaceholder = "__Function"

// Answers maps question names to answer values.
type Answers map[string]any

// Clone returns a shallow copy of the answer set.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	cp := make(Answers, len(a))
	for k, v := range a {
		cp[k] = v
	}
	return cp
}

// Question is a single question inside a step's question set.
// Behaviors holds the question's dynamic methods (validate, filter, …),
// which never cross the UI boundary — they are replaced with
// FunctionPlaceholder markers and invoked locally by name.
type Question struct {
	Name    string   `json:"name" yaml:"name"`
	Type    string   `json:"type" yaml:"type"` // input, confirm, list, …
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
	Default any      `json:"default,omitempty" yaml:"default,omitempty"`
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`

	Behaviors map[string]BehaviorFunc `json:"-" yaml:"-"`
}

// BehaviorFunc is a dynamic per-question method (validator, choice filter).
// Invoked locally via Registry / session.EvaluateBehavior, never serialized.
type BehaviorFunc func(args ...any) (any, error)

// StepRecord is one completed prompt/answer exchange: the question set that
// was shown and the answers that were given. Immutable once recorded.
type StepRecord struct {
	Name      string
	Questions []Question
	Answers   Answers
}

// StepName derives the display name for a question set: the humanized name
// of the first question, or a positional fallback when the set is anonymous.
// The derived name doubles as half of the replay key, so it must be a pure
// function of the question set and position.
func StepName(questions []Question, position int) string {
	if len(questions) > 0 && questions[0].Name != "" {
		return humanize(questions[0].Name)
	}
	return fmt.Sprintf("Step %d", position+1)
}

// humanize turns an identifier like "projectName" or "project_name" into
// "Project Name".
func humanize(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == ' ':
			b.WriteByte(' ')
			prevLower = false
			continue
		case r >= 'A' && r <= 'Z' && prevLower:
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prevLower = r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SameQuestionNames reports whether two question sets carry exactly the same
// question names in the same order. This is the replay matching rule: any
// difference in count, name or order counts as divergence.
func SameQuestionNames(a, b []Question) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

// Sanitize returns a copy of the question set safe to serialize across the
// UI transport: every dynamic behavior is dropped and announced through a
// FunctionPlaceholder marker in the serialized form.
func Sanitize(questions []Question) []SerializableQuestion {
	out := make([]SerializableQuestion, len(questions))
	for i, q := range questions {
		sq := SerializableQuestion{
			Name:    q.Name,
			Type:    q.Type,
			Message: q.Message,
			Default: q.Default,
			Choices: q.Choices,
		}
		for method := range q.Behaviors {
			if sq.Methods == nil {
				sq.Methods = make(map[string]string)
			}
			sq.Methods[method] = FunctionPlaceholder
		}
		out[i] = sq
	}
	return out
}

// SerializableQuestion is the wire form of a Question: plain data plus
// placeholder markers for the dynamic methods that stayed behind.
type SerializableQuestion struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Message string            `json:"message,omitempty"`
	Default any               `json:"default,omitempty"`
	Choices []string          `json:"choices,omitempty"`
	Methods map[string]string `json:"methods,omitempty"`
}
