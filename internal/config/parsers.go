// Package config loads lanebench run settings from flags, LANEBENCH_*
// environment variables and an optional JSON or YAML file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// lookupSetting returns the first candidate key present in settings,
// trying each key as written and lowercased.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		for _, k := range []string{key, strings.ToLower(key)} {
			if val, ok := settings[k]; ok {
				return val, true
			}
		}
	}
	return nil, false
}

// blank reports whether value is nil or a whitespace-only string. Blank
// settings leave the default in place.
func blank(value interface{}) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

func trimmed(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return value
}

func asString(value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	return cast.ToStringE(value)
}

func asInt(value interface{}) (int, error) {
	if blank(value) {
		return 0, nil
	}
	return cast.ToIntE(trimmed(value))
}

// asUint64 accepts digit separators in strings ("600_000") and rejects
// negative values.
func asUint64(value interface{}) (uint64, error) {
	if blank(value) {
		return 0, nil
	}
	if s, ok := value.(string); ok {
		value = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	}
	n, err := cast.ToUint64E(value)
	if err != nil {
		return 0, fmt.Errorf("must be a non-negative integer: %w", err)
	}
	return n, nil
}

func asFloat64(value interface{}) (float64, error) {
	if blank(value) {
		return 0, nil
	}
	return cast.ToFloat64E(trimmed(value))
}

func asBool(value interface{}) (bool, error) {
	if blank(value) {
		return false, nil
	}
	return cast.ToBoolE(trimmed(value))
}

// asStringSlice also accepts a single comma separated string, which is how
// LANEBENCH_THRESHOLDS carries a list.
func asStringSlice(value interface{}) ([]string, error) {
	if s, ok := value.(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	if value == nil {
		return nil, nil
	}
	return cast.ToStringSliceE(value)
}

// toStringKeyMap lowercases keys so file sections match regardless of case.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	out := make(map[string]interface{}, len(m))
	for key, val := range m {
		out[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return out, nil
}
