// Package metricpath resolves dot-notation paths against decoded JSON trees.
package metricpath

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup walks data along a dot-separated path. Map elements are traversed by
// key; slice elements by numeric index. The second return is false when any
// segment is missing or the shapes do not match.
func Lookup(data any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	current := data
	for _, key := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Float resolves path and coerces the result to float64. Integer and float
// JSON numbers both coerce; anything else reports false.
func Float(data any, path string) (float64, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return 0, false
	}
	return AsFloat(v)
}

// String resolves path to a string value.
func String(data any, path string) (string, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// AsFloat coerces a decoded JSON scalar to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
