// Package values holds helpers for the loosely typed map[string]any values
// that flow through operations: deep copies, JSON normalization, and
// lenient numeric/string coercion for handler inputs.
package values

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CloneMap returns a deep copy of src. Nested maps and slices are copied;
// scalars are shared. A nil map yields nil.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = Clone(v)
	}
	return dst
}

// CloneMaps deep-copies a slice of maps.
func CloneMaps(src []map[string]any) []map[string]any {
	if src == nil {
		return nil
	}
	dst := make([]map[string]any, len(src))
	for i, m := range src {
		dst[i] = CloneMap(m)
	}
	return dst
}

// Clone returns a deep copy of v for the container types produced by JSON
// decoding and by the mock store. Other values are returned as-is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case []map[string]any:
		return CloneMaps(t)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Normalize converts v into the canonical JSON value space (map[string]any,
// []any, float64, string, bool, nil) by a JSON round trip. It is applied to
// caller-supplied variables before schema validation.
func Normalize(v map[string]any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("variables are not JSON-encodable: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("variables are not a JSON object: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Float coerces numeric-looking values to float64.
func Float(v any) (float64, bool) {
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
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Int coerces numeric-looking values to int, truncating fractions.
func Int(v any) (int, bool) {
	f, ok := Float(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// IntOr returns Int(v) or def when v is absent or not numeric.
func IntOr(v any, def int) int {
	if n, ok := Int(v); ok {
		return n
	}
	return def
}

// FloatOr returns Float(v) or def when v is absent or not numeric.
func FloatOr(v any, def float64) float64 {
	if f, ok := Float(v); ok {
		return f
	}
	return def
}

// String renders v as a string. nil yields "".
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Round2 rounds to two decimal places (currency precision).
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
