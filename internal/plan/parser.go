package plan

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/t2/internal/module"
)

// knownStepFields are fields that are step directives, not module names.
var knownStepFields = map[string]bool{
	"name":          true,
	"when":          true,
	"register":      true,
	"ignore_errors": true,
}

// ParseFile parses a plan from a YAML file.
func ParseFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	p, err := Parse(data, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	return p, nil
}

// Parse parses a plan from YAML data. The document is either a mapping
// with name, vars, gather_facts and steps, or a bare list of steps.
func Parse(data []byte, path string) (*Plan, error) {
	p := &Plan{Path: path, Vars: make(map[string]any)}

	var rawSteps []any

	var list []any
	if err := yaml.Unmarshal(data, &list); err == nil {
		rawSteps = list
	} else {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid plan format: %w", err)
		}

		if v, ok := raw["name"].(string); ok {
			p.Name = v
		}
		if v, ok := raw["gather_facts"].(bool); ok {
			p.GatherFacts = v
		}
		if vars, ok := raw["vars"].(map[string]any); ok {
			p.Vars = vars
		}

		steps, ok := raw["steps"].([]any)
		if !ok && raw["steps"] != nil {
			return nil, fmt.Errorf("'steps' must be a list")
		}
		rawSteps = steps
	}

	for i, rawStep := range rawSteps {
		stepMap, ok := rawStep.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step %d: invalid step format", i+1)
		}
		step, err := parseRawStep(stepMap)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		p.Steps = append(p.Steps, step)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseRawStep parses a single step from a raw map.
func parseRawStep(raw map[string]any) (*Step, error) {
	step := &Step{
		Params: make(map[string]any),
	}

	if v, ok := raw["name"].(string); ok {
		step.Name = v
	}
	if v, ok := raw["when"].(string); ok {
		step.When = v
	}
	if v, ok := raw["register"].(string); ok {
		step.Register = v
	}
	if v, ok := raw["ignore_errors"].(bool); ok {
		step.IgnoreErrors = v
	}

	// The module is the one key that is not a step directive.
	for key, value := range raw {
		if knownStepFields[key] {
			continue
		}

		if step.Module != "" {
			return nil, fmt.Errorf("multiple modules specified: %s and %s", step.Module, key)
		}

		step.Module = key

		switch params := value.(type) {
		case map[string]any:
			step.Params = params
		case nil:
			step.Params = make(map[string]any)
		default:
			// Short form: module: "arg"
			step.Params = map[string]any{"_raw": params}
		}
	}

	return step, nil
}

// ExpandShorthand expands shorthand module syntax.
// For example, "wifi: ssid=home password=secret" becomes proper params.
func ExpandShorthand(step *Step) {
	raw, ok := step.Params["_raw"]
	if !ok {
		return
	}

	s, isString := raw.(string)
	if !isString || !strings.Contains(s, "=") || step.Module == "command" {
		// Single argument - module-specific handling
		switch step.Module {
		case "command":
			step.Params = map[string]any{"cmd": raw}
		case "wifi":
			step.Params = map[string]any{"ssid": raw}
		case "wifi_state":
			step.Params = map[string]any{"enabled": raw}
		case "provision":
			step.Params = map[string]any{"key": raw}
		case "scan":
			step.Params = map[string]any{"require": raw}
		case "copy":
			step.Params = map[string]any{"dest": raw}
		default:
			step.Params = map[string]any{"name": raw}
		}
		return
	}

	// Parse key=value pairs
	params := make(map[string]any)
	for _, part := range strings.Fields(s) {
		if idx := strings.Index(part, "="); idx > 0 {
			params[part[:idx]] = strings.Trim(part[idx+1:], "\"'")
		}
	}
	step.Params = params
}

// ResolveModule checks if the step's module exists in the registry.
func ResolveModule(step *Step) (module.Module, error) {
	if step.Module == "" {
		return nil, fmt.Errorf("no module specified")
	}

	m := module.Get(step.Module)
	if m == nil {
		return nil, fmt.Errorf("unknown module '%s' (available: %s)",
			step.Module, strings.Join(module.List(), ", "))
	}
	return m, nil
}
