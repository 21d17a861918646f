// Package flow implements the wizard flow definition format and the
// generator engine that executes it. A flow is a YAML document describing
// ordered question steps with data-dependent conditions, the files to
// scaffold into the working directory, and an optional install command.
package flow

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Flow is a parsed wizard flow definition.
type Flow struct {
	Version string      `yaml:"version" json:"version" jsonschema:"required,enum=wizard/v1"`
	Meta    Meta        `yaml:"meta" json:"meta" jsonschema:"required"`
	Steps   []StepDef   `yaml:"steps" json:"steps" jsonschema:"required"`
	Outputs []OutputDef `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Install *InstallDef `yaml:"install,omitempty" json:"install,omitempty"`
}

// Meta carries flow identity and a markdown description shown by the UIs.
type Meta struct {
	Name        string `yaml:"name" json:"name" jsonschema:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// StepDef is one question step. When is an expr condition over the answers
// given so far; a false condition turns the step into a no-op (the engine
// still asks, with an empty question set).
type StepDef struct {
	When      string        `yaml:"when,omitempty" json:"when,omitempty"`
	Questions []QuestionDef `yaml:"questions" json:"questions" jsonschema:"required"`
}

// QuestionDef is the declarative form of one question. Validate and Filter
// are expr expressions over `value` (and `answers`) compiled into dynamic
// behaviors — they stay on this side of the UI boundary.
type QuestionDef struct {
	Name     string   `yaml:"name" json:"name" jsonschema:"required"`
	Type     string   `yaml:"type" json:"type" jsonschema:"required,enum=input,enum=confirm,enum=list"`
	Message  string   `yaml:"message,omitempty" json:"message,omitempty"`
	Default  any      `yaml:"default,omitempty" json:"default,omitempty"`
	Choices  []string `yaml:"choices,omitempty" json:"choices,omitempty"`
	Validate string   `yaml:"validate,omitempty" json:"validate,omitempty"`
	Filter   string   `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// OutputDef is one scaffolded file: a templated path and templated content,
// rendered against the final answer set.
type OutputDef struct {
	Path    string `yaml:"path" json:"path" jsonschema:"required"`
	Content string `yaml:"content" json:"content"`
}

// InstallDef is the post-generation install command.
type InstallDef struct {
	Argv []string `yaml:"argv" json:"argv" jsonschema:"required"`
}

// LoadFile reads and parses a flow YAML file with strict unknown-field
// rejection.
func LoadFile(path string) (*Flow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flow: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a flow definition from an io.Reader with strict
// unknown-field rejection.
func Load(r io.Reader) (*Flow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fl Flow
	if err := dec.Decode(&fl); err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	return &fl, nil
}
