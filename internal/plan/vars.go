package plan

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// varPattern matches {{ variable }} syntax.
var varPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Vars holds the variables visible to steps: plan vars, facts, env and
// registered results.
type Vars map[string]any

// newVars seeds the variables of a run.
func newVars(planVars map[string]any) Vars {
	v := make(Vars, len(planVars)+1)
	for k, val := range planVars {
		v[k] = val
	}
	v["env"] = envMap()
	return v
}

// interpolateParams recursively interpolates variables in step parameters.
func (v Vars) interpolateParams(params map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(params))

	for k, val := range params {
		interpolated, err := v.interpolateValue(val)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", k, err)
		}
		result[k] = interpolated
	}

	return result, nil
}

// interpolateValue interpolates variables in a single value.
func (v Vars) interpolateValue(val any) (any, error) {
	switch x := val.(type) {
	case string:
		return v.interpolateString(x)

	case []any:
		result := make([]any, len(x))
		for i, item := range x {
			interpolated, err := v.interpolateValue(item)
			if err != nil {
				return nil, err
			}
			result[i] = interpolated
		}
		return result, nil

	case map[string]any:
		return v.interpolateParams(x)

	default:
		return val, nil
	}
}

// interpolateString replaces {{ var }} patterns with their values. A string
// that is exactly one reference keeps the value's type.
func (v Vars) interpolateString(s string) (any, error) {
	trimmed := strings.TrimSpace(s)
	if m := varPattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
		return v.resolve(m[1])
	}

	var firstErr error
	result := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := varPattern.FindStringSubmatch(match)[1]
		val, err := v.resolve(expr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		if val == nil {
			return ""
		}
		return fmt.Sprintf("%v", val)
	})

	return result, firstErr
}

// resolve evaluates a variable expression with an optional filter.
func (v Vars) resolve(expr string) (any, error) {
	expr = strings.TrimSpace(expr)

	if idx := strings.Index(expr, "|"); idx > 0 {
		name := strings.TrimSpace(expr[:idx])
		filter := strings.TrimSpace(expr[idx+1:])
		return applyFilter(v.Lookup(name), filter)
	}

	return v.Lookup(expr), nil
}

// Lookup returns a variable by name or dotted path (facts.kernel,
// env.HOME, joined.changed), or nil.
func (v Vars) Lookup(name string) any {
	if val, ok := v[name]; ok {
		return val
	}

	if !strings.Contains(name, ".") {
		return nil
	}

	var current any = map[string]any(v)
	for _, part := range strings.Split(name, ".") {
		switch c := current.(type) {
		case map[string]any:
			current = c[part]
		case map[string]string:
			current = c[part]
		default:
			return nil
		}
		if current == nil {
			return nil
		}
	}
	return current
}

// applyFilter applies a filter to a value.
func applyFilter(val any, filter string) (any, error) {
	name := filter
	var arg string

	if idx := strings.Index(filter, "("); idx > 0 {
		name = strings.TrimSpace(filter[:idx])
		argPart := filter[idx+1:]
		if end := strings.LastIndex(argPart, ")"); end >= 0 {
			arg = strings.Trim(strings.TrimSpace(argPart[:end]), "'\"")
		}
	}

	switch name {
	case "default":
		if val == nil || val == "" {
			return arg, nil
		}
		return val, nil

	case "lower":
		if s, ok := val.(string); ok {
			return strings.ToLower(s), nil
		}
		return val, nil

	case "upper":
		if s, ok := val.(string); ok {
			return strings.ToUpper(s), nil
		}
		return val, nil

	case "trim":
		if s, ok := val.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return val, nil

	case "bool":
		return isTruthy(val), nil

	default:
		return nil, fmt.Errorf("unknown filter: %s", name)
	}
}

// evaluateCondition evaluates a when condition. Supported forms are
// truthiness, "not <expr>", "a == b" and "a != b".
func (v Vars) evaluateCondition(condition string) bool {
	condition = strings.TrimSpace(condition)

	if strings.HasPrefix(condition, "not ") {
		return !v.evaluateCondition(condition[4:])
	}

	if left, right, ok := strings.Cut(condition, "!="); ok {
		return fmt.Sprint(v.resolveValue(left)) != fmt.Sprint(v.resolveValue(right))
	}
	if left, right, ok := strings.Cut(condition, "=="); ok {
		return fmt.Sprint(v.resolveValue(left)) == fmt.Sprint(v.resolveValue(right))
	}

	return isTruthy(v.resolveValue(condition))
}

// resolveValue resolves a literal or a variable reference.
func (v Vars) resolveValue(s string) any {
	s = strings.TrimSpace(s)

	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}

	switch s {
	case "true", "True":
		return true
	case "false", "False":
		return false
	}

	if val := v.Lookup(s); val != nil {
		return val
	}
	if _, ok := v[strings.Split(s, ".")[0]]; ok {
		return nil
	}
	return s
}

// isTruthy returns whether a value is considered truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}

	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "False" && val != "no"
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// envMap returns environment variables as a map.
func envMap() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if k, val, ok := strings.Cut(e, "="); ok && k != "" {
			env[k] = val
		}
	}
	return env
}
