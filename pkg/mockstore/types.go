package mockstore

import (
	"time"

	"github.com/getmockd/posgraph/internal/values"
)

// Record is a single entry in a collection.
type Record struct {
	// ID is the unique identifier, "{prefix}-{uuidv7}" when generated.
	ID string
	// Data holds the record fields, without id and timestamps.
	Data map[string]any
	// CreatedAt is when the record was created.
	CreatedAt time.Time
	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time
}

// ToMap flattens the record into a fresh map with id and RFC3339 timestamps
// at the root. The returned map shares nothing with the stored record.
func (r *Record) ToMap() map[string]any {
	out := values.CloneMap(r.Data)
	if out == nil {
		out = make(map[string]any, 3)
	}
	out["id"] = r.ID
	out["createdAt"] = r.CreatedAt.UTC().Format(time.RFC3339)
	out["updatedAt"] = r.UpdatedAt.UTC().Format(time.RFC3339)
	return out
}

// Field returns the raw value of a field, including id and timestamps.
func (r *Record) Field(name string) any {
	switch name {
	case "id":
		return r.ID
	case "createdAt":
		return r.CreatedAt
	case "updatedAt":
		return r.UpdatedAt
	}
	return r.Data[name]
}

func (r *Record) clone() *Record {
	c := *r
	c.Data = values.CloneMap(r.Data)
	return &c
}

// recordFromMap builds a Record from a flat map. createdAt and updatedAt are
// honored when present so seed data can carry historical timestamps.
func recordFromMap(data map[string]any, now time.Time) *Record {
	rec := &Record{
		Data:      make(map[string]any, len(data)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range data {
		switch k {
		case "id":
			rec.ID, _ = v.(string)
		case "createdAt":
			if t, ok := parseTime(v); ok {
				rec.CreatedAt = t
			}
		case "updatedAt":
			if t, ok := parseTime(v); ok {
				rec.UpdatedAt = t
			}
		default:
			rec.Data[k] = values.Clone(v)
		}
	}
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}
	return rec
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

// CollectionConfig describes a collection to register.
type CollectionConfig struct {
	// Name is the collection name, e.g. "products".
	Name string `yaml:"name"`
	// IDPrefix is prepended to generated ids, e.g. "prod".
	IDPrefix string `yaml:"idPrefix"`
	// SearchFields are the text fields matched by QueryFilter.Search.
	SearchFields []string `yaml:"searchFields"`
	// Seed is the initial data restored by Reset.
	Seed []map[string]any `yaml:"seed"`
}

// QueryFilter contains parameters for filtering and paginating lists.
type QueryFilter struct {
	// Limit is the maximum records to return; <= 0 means no limit.
	Limit int
	// Offset is the number of records to skip.
	Offset int
	// Search is a case-insensitive substring matched against SearchFields.
	Search string
	// Filters are case-insensitive exact matches by field name.
	Filters map[string]string
	// Sort is the field to sort by; empty keeps insertion order.
	Sort string
	// Order is "asc" (default) or "desc".
	Order string
}

// Page is one page of a filtered list.
type Page struct {
	// Items are deep copies of the matching records.
	Items []map[string]any `json:"items"`
	// Total is the number of matches before pagination.
	Total int `json:"total"`
	// Offset is the number of matches skipped.
	Offset int `json:"offset"`
}

// Info describes one collection.
type Info struct {
	Name         string   `json:"name"`
	IDPrefix     string   `json:"idPrefix"`
	Count        int      `json:"count"`
	SeedCount    int      `json:"seedCount"`
	SearchFields []string `json:"searchFields"`
}

// Overview describes the whole store.
type Overview struct {
	Collections int      `json:"collections"`
	TotalItems  int      `json:"totalItems"`
	Names       []string `json:"names"`
}

// ResetResult is returned by Store.Reset.
type ResetResult struct {
	Collections []string `json:"collections"`
	Message     string   `json:"message"`
}
