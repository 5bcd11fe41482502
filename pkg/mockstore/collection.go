package mockstore

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/getmockd/posgraph/internal/id"
	"github.com/getmockd/posgraph/internal/values"
)

// Collection is a named, insertion-ordered set of records.
type Collection struct {
	mu           sync.RWMutex
	name         string
	prefix       string
	searchFields []string
	order        []string
	items        map[string]*Record
	seed         []map[string]any
	observer     Observer
	now          func() time.Time
}

func newCollection(cfg CollectionConfig, observer Observer, now func() time.Time) *Collection {
	return &Collection{
		name:         cfg.Name,
		prefix:       cfg.IDPrefix,
		searchFields: append([]string(nil), cfg.SearchFields...),
		items:        make(map[string]*Record),
		seed:         values.CloneMaps(cfg.Seed),
		observer:     observer,
		now:          now,
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Count returns the number of records.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Get returns a copy of the record with the given id.
func (c *Collection) Get(id string) (map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.get(id)
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}

// Find returns a copy of the first record, in insertion order, for which
// match returns true.
func (c *Collection) Find(match func(map[string]any) bool) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.find(match)
}

// List returns a filtered, paginated page of copies.
func (c *Collection) List(filter *QueryFilter) Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list(filter)
}

// All returns copies of every record in insertion order.
func (c *Collection) All() []map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.all()
}

// Create inserts a record, generating an id when data has none.
func (c *Collection) Create(data map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := c.create(data)
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}

// Patch merges fields into an existing record. id and timestamps in fields
// are ignored.
func (c *Collection) Patch(id string, fields map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := c.patch(id, fields)
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}

// Delete removes a record and returns its last state.
func (c *Collection) Delete(id string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := c.remove(id)
	if err != nil {
		return nil, err
	}
	return rec.ToMap(), nil
}

// Reset restores the seed data.
func (c *Collection) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadSeed()
}

// Clear removes every record without restoring seed data and returns the
// number removed.
func (c *Collection) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.order)
	c.order = nil
	c.items = make(map[string]*Record)
	return n
}

// Info describes the collection.
func (c *Collection) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Info{
		Name:         c.name,
		IDPrefix:     c.prefix,
		Count:        len(c.order),
		SeedCount:    len(c.seed),
		SearchFields: append([]string(nil), c.searchFields...),
	}
}

// The methods below expect the caller to hold c.mu.

func (c *Collection) loadSeed() error {
	c.order = make([]string, 0, len(c.seed))
	c.items = make(map[string]*Record, len(c.seed))
	now := c.now()
	for i, data := range c.seed {
		rec := recordFromMap(data, now)
		if rec.ID == "" {
			rec.ID = id.Prefixed(c.prefix)
		}
		if _, exists := c.items[rec.ID]; exists {
			return fmt.Errorf("duplicate id %q in %s seed data at index %d", rec.ID, c.name, i)
		}
		c.items[rec.ID] = rec
		c.order = append(c.order, rec.ID)
	}
	return nil
}

func (c *Collection) get(recID string) (*Record, error) {
	start := time.Now()
	rec, ok := c.items[recID]
	if !ok {
		err := &NotFoundError{Collection: c.name, ID: recID}
		c.observer.OnError(c.name, "get", err)
		return nil, err
	}
	c.observer.OnRead(c.name, recID, time.Since(start))
	return rec, nil
}

func (c *Collection) find(match func(map[string]any) bool) (map[string]any, bool) {
	for _, recID := range c.order {
		m := c.items[recID].ToMap()
		if match(m) {
			return m, true
		}
	}
	return nil, false
}

func (c *Collection) records() []*Record {
	out := make([]*Record, len(c.order))
	for i, recID := range c.order {
		out[i] = c.items[recID]
	}
	return out
}

func (c *Collection) list(filter *QueryFilter) Page {
	start := time.Now()
	if filter == nil {
		filter = &QueryFilter{}
	}

	matched := ApplyFilters(c.records(), filter, c.searchFields)
	if filter.Sort != "" {
		matched = slices.Clone(matched)
		SortRecords(matched, filter.Sort, filter.Order)
	}
	page, total := Paginate(matched, filter.Offset, filter.Limit)

	items := make([]map[string]any, len(page))
	for i, rec := range page {
		items[i] = rec.ToMap()
	}
	c.observer.OnList(c.name, len(items), time.Since(start))

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return Page{Items: items, Total: total, Offset: offset}
}

func (c *Collection) all() []map[string]any {
	out := make([]map[string]any, len(c.order))
	for i, recID := range c.order {
		out[i] = c.items[recID].ToMap()
	}
	return out
}

func (c *Collection) create(data map[string]any) (*Record, error) {
	start := time.Now()
	now := c.now()
	rec := recordFromMap(data, now)
	rec.CreatedAt, rec.UpdatedAt = now, now
	if rec.ID == "" {
		rec.ID = id.Prefixed(c.prefix)
	}
	if _, exists := c.items[rec.ID]; exists {
		err := &ConflictError{Collection: c.name, ID: rec.ID}
		c.observer.OnError(c.name, "create", err)
		return nil, err
	}
	c.items[rec.ID] = rec
	c.order = append(c.order, rec.ID)
	c.observer.OnCreate(c.name, rec.ID, time.Since(start))
	return rec, nil
}

func (c *Collection) patch(recID string, fields map[string]any) (*Record, error) {
	start := time.Now()
	existing, ok := c.items[recID]
	if !ok {
		err := &NotFoundError{Collection: c.name, ID: recID}
		c.observer.OnError(c.name, "update", err)
		return nil, err
	}

	rec := existing.clone()
	for k, v := range fields {
		switch k {
		case "id", "createdAt", "updatedAt":
			continue
		}
		rec.Data[k] = values.Clone(v)
	}
	rec.UpdatedAt = c.now()
	c.items[recID] = rec
	c.observer.OnUpdate(c.name, recID, time.Since(start))
	return rec, nil
}

func (c *Collection) remove(recID string) (*Record, error) {
	start := time.Now()
	rec, ok := c.items[recID]
	if !ok {
		err := &NotFoundError{Collection: c.name, ID: recID}
		c.observer.OnError(c.name, "delete", err)
		return nil, err
	}
	delete(c.items, recID)
	if i := slices.Index(c.order, recID); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
	c.observer.OnDelete(c.name, recID, time.Since(start))
	return rec, nil
}
