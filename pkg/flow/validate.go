package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError is a single validation finding with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location, e.g. "steps[1].questions[0]"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile runs the full validation pipeline on a flow file.
// Phase 1: structural (strict YAML decode)
// Phase 2: semantic (JSON Schema validation)
// Phase 3: domain (custom Go rules, including expr compilation)
func ValidateFile(path string) (*Flow, []*ValidationError) {
	fl, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return fl, Validate(fl)
}

// Validate runs the semantic and domain phases on an already-parsed flow.
func Validate(fl *Flow) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(fl)...)
	all = append(all, validateDomain(fl)...)
	return all
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// validateSemantic validates the flow against the generated JSON Schema.
func validateSemantic(fl *Flow) []*ValidationError {
	fail := func(msg string) []*ValidationError {
		return []*ValidationError{{Phase: "semantic", Message: msg, Severity: "error"}}
	}

	data, err := json.Marshal(fl)
	if err != nil {
		return fail(fmt.Sprintf("marshal for schema validation: %v", err))
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail(fmt.Sprintf("generate schema: %v", err))
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fail(fmt.Sprintf("unmarshal schema: %v", err))
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("flow-v1.json", schemaDoc); err != nil {
		return fail(fmt.Sprintf("add schema resource: %v", err))
	}
	sch, err := c.Compile("flow-v1.json")
	if err != nil {
		return fail(fmt.Sprintf("compile schema: %v", err))
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail(fmt.Sprintf("unmarshal document: %v", err))
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
			return errs
		}
		return fail(err.Error())
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// validateDomain applies the Go-level rules the schema cannot express.
func validateDomain(fl *Flow) []*ValidationError {
	var errs []*ValidationError
	add := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"})
	}

	if fl.Version != "wizard/v1" {
		add("version", fmt.Sprintf("unsupported version %q (want wizard/v1)", fl.Version))
	}
	if len(fl.Steps) == 0 {
		add("steps", "flow must define at least one step")
	}

	for si, step := range fl.Steps {
		stepPath := fmt.Sprintf("steps[%d]", si)
		if step.When != "" {
			if _, err := expr.Compile(step.When); err != nil {
				add(stepPath+".when", fmt.Sprintf("invalid condition: %v", err))
			}
		}
		seen := make(map[string]bool)
		for qi, q := range step.Questions {
			qPath := fmt.Sprintf("%s.questions[%d]", stepPath, qi)
			if q.Name == "" {
				add(qPath+".name", "question name must not be empty")
				continue
			}
			if seen[q.Name] {
				add(qPath+".name", fmt.Sprintf("duplicate question name %q", q.Name))
			}
			seen[q.Name] = true
			if q.Type == "list" && len(q.Choices) == 0 {
				add(qPath+".choices", fmt.Sprintf("list question %q needs choices", q.Name))
			}
			if q.Validate != "" {
				if _, err := expr.Compile(q.Validate); err != nil {
					add(qPath+".validate", fmt.Sprintf("invalid expression: %v", err))
				}
			}
			if q.Filter != "" {
				if _, err := expr.Compile(q.Filter); err != nil {
					add(qPath+".filter", fmt.Sprintf("invalid expression: %v", err))
				}
			}
		}
	}

	if fl.Install != nil && len(fl.Install.Argv) == 0 {
		add("install.argv", "install command must not be empty")
	}
	return errs
}
