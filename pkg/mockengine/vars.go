package mockengine

import (
	"strings"

	"github.com/getmockd/posgraph/internal/values"
	"github.com/getmockd/posgraph/pkg/mockstore"
)

func str(vars map[string]any, key string) string {
	s, _ := vars[key].(string)
	return strings.TrimSpace(s)
}

func pageFilter(vars map[string]any) *mockstore.QueryFilter {
	return &mockstore.QueryFilter{
		Limit:  values.IntOr(vars["limit"], 0),
		Offset: values.IntOr(vars["offset"], 0),
		Search: str(vars, "search"),
	}
}

// pick copies the listed keys that are present in vars. Explicit nulls are
// kept so callers can clear optional fields.
func pick(vars map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := vars[k]; ok {
			out[k] = v
		}
	}
	return out
}

func list(items []map[string]any) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

func deleted(recID string) map[string]any {
	return map[string]any{"id": recID, "success": true}
}

func field(name string, v any) map[string]any {
	return map[string]any{name: v}
}
