// Package plan defines the structure and parsing of board plans: ordered
// lists of steps run against one board.
package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Plan is a parsed plan file.
type Plan struct {
	// Path is the file path the plan was loaded from.
	Path string

	// Name is an optional description of the plan.
	Name string

	// Vars defines variables available to all steps.
	Vars map[string]any

	// GatherFacts collects board facts into the "facts" variable before
	// the first step.
	GatherFacts bool

	// Steps run in order.
	Steps []*Step
}

// Step is a single module invocation.
type Step struct {
	// Name is a description of the step.
	Name string

	// Module is the name of the module to execute.
	Module string

	// Params are the parameters to pass to the module.
	Params map[string]any

	// When is a conditional expression; the step runs only if true.
	When string

	// Register stores the step result in a variable with this name.
	Register string

	// IgnoreErrors continues the plan even if the step fails.
	IgnoreErrors bool
}

// Validate checks the plan for common errors.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}

	for i, step := range p.Steps {
		if err := step.Validate(); err != nil {
			name := step.Name
			if name == "" {
				name = fmt.Sprintf("step %d", i+1)
			}
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks the step for common errors.
func (s *Step) Validate() error {
	if s.Module == "" {
		return fmt.Errorf("step has no module specified")
	}
	return nil
}

// String returns a human-readable description of the step.
func (s *Step) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s: %s", s.Module, summarizeParams(s.Params))
}

// summarizeParams creates a brief summary of step parameters. Passwords
// are never shown.
func summarizeParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		if len(parts) == 3 {
			parts = append(parts, "...")
			break
		}
		switch val := params[k].(type) {
		case string:
			if k == "password" {
				val = "********"
			}
			if len(val) > 30 {
				val = val[:27] + "..."
			}
			parts = append(parts, fmt.Sprintf("%s=%q", k, val))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, val))
		}
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
