package mockstore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/getmockd/posgraph/internal/values"
)

// ApplyFilters returns the records matching filter's Search and Filters.
// searchFields lists the fields Search is matched against.
func ApplyFilters(records []*Record, filter *QueryFilter, searchFields []string) []*Record {
	if filter == nil {
		return records
	}
	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	result := make([]*Record, 0, len(records))

	for _, rec := range records {
		if needle != "" && !matchesSearch(rec, needle, searchFields) {
			continue
		}

		matched := true
		for field, want := range filter.Filters {
			if want == "" {
				continue
			}
			if !strings.EqualFold(values.String(rec.Field(field)), want) {
				matched = false
				break
			}
		}
		if matched {
			result = append(result, rec)
		}
	}
	return result
}

func matchesSearch(rec *Record, needle string, fields []string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(values.String(rec.Field(f))), needle) {
			return true
		}
	}
	return false
}

// SortRecords sorts records by field. An empty field keeps the current order.
// The sort is stable so equal keys keep insertion order.
func SortRecords(records []*Record, field, order string) {
	if field == "" {
		return
	}
	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(records, func(i, j int) bool {
		vi, vj := records[i].Field(field), records[j].Field(field)
		if desc {
			return CompareValues(vj, vi)
		}
		return CompareValues(vi, vj)
	})
}

// CompareValues reports whether a sorts before b.
// Numbers compare numerically regardless of their Go type, times
// chronologically; everything else falls back to string comparison.
func CompareValues(a, b any) bool {
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return va < vb
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Before(vb)
		}
	}

	fa, okA := values.Float(a)
	fb, okB := values.Float(b)
	if okA && okB {
		return fa < fb
	}

	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

// Paginate applies offset and limit. It returns the page and the total count
// before pagination. A negative offset is treated as 0; limit <= 0 returns
// everything after offset.
func Paginate(records []*Record, offset, limit int) ([]*Record, int) {
	total := len(records)

	start := offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}

	end := total
	if limit > 0 && start+limit < total {
		end = start + limit
	}

	return records[start:end], total
}
