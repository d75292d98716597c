package module

import (
	"fmt"
	"strconv"
	"strings"
)

// RequireString returns a non-empty string parameter.
func RequireString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("required parameter '%s' is missing", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' must be a string", key)
	}
	if s == "" {
		return "", fmt.Errorf("parameter '%s' cannot be empty", key)
	}
	return s, nil
}

// GetString returns a string parameter or defaultValue.
func GetString(params map[string]any, key, defaultValue string) string {
	v, ok := params[key]
	if !ok {
		return defaultValue
	}
	s, ok := v.(string)
	if !ok {
		return defaultValue
	}
	return s
}

// GetOptionalString returns a pointer to a string parameter, or nil when it
// is absent. Scalars are formatted so a numeric password stays a password.
func GetOptionalString(params map[string]any, key string) *string {
	v, ok := params[key]
	if !ok || v == nil {
		return nil
	}
	s := fmt.Sprintf("%v", v)
	return &s
}

// GetBool returns a boolean parameter. Strings such as "on", "yes" and
// "true" are accepted.
func GetBool(params map[string]any, key string, defaultValue bool) (bool, error) {
	v, ok := params[key]
	if !ok {
		return defaultValue, nil
	}

	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "on", "yes", "enabled":
			return true, nil
		case "off", "no", "disabled":
			return false, nil
		}
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("parameter '%s' must be a boolean, got %q", key, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("parameter '%s' must be a boolean", key)
	}
}
