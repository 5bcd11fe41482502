package mockstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the container of all mock collections.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	observer    Observer
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithObserver installs an Observer for every collection.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]*Collection),
		observer:    NoopObserver{},
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a collection and loads its seed data.
func (s *Store) Register(cfg CollectionConfig) error {
	if cfg.Name == "" {
		return errors.New("collection name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[cfg.Name]; exists {
		return fmt.Errorf("collection %q already registered", cfg.Name)
	}

	c := newCollection(cfg, s.observer, s.now)
	if err := c.loadSeed(); err != nil {
		return fmt.Errorf("failed to load seed data for %q: %w", cfg.Name, err)
	}
	s.collections[cfg.Name] = c
	return nil
}

// Collection returns a registered collection.
func (s *Store) Collection(name string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, &NotFoundError{Collection: name}
	}
	return c, nil
}

// Names returns all collection names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Update runs fn with write access to the named collections. The locks are
// taken in sorted-name order and held until fn returns. fn should validate
// before it mutates: there is no rollback.
func (s *Store) Update(names []string, fn func(tx *Tx) error) error {
	return s.transact(names, true, fn)
}

// View runs fn with a consistent read-only view of the named collections.
func (s *Store) View(names []string, fn func(tx *Tx) error) error {
	return s.transact(names, false, fn)
}

func (s *Store) transact(names []string, writable bool, fn func(tx *Tx) error) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	sorted = compact(sorted)

	cols := make(map[string]*Collection, len(sorted))
	ordered := make([]*Collection, 0, len(sorted))
	for _, name := range sorted {
		c, err := s.Collection(name)
		if err != nil {
			return err
		}
		cols[name] = c
		ordered = append(ordered, c)
	}

	for _, c := range ordered {
		if writable {
			c.mu.Lock()
		} else {
			c.mu.RLock()
		}
	}
	defer func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			if writable {
				ordered[i].mu.Unlock()
			} else {
				ordered[i].mu.RUnlock()
			}
		}
	}()

	return fn(&Tx{cols: cols, writable: writable})
}

func compact(sorted []string) []string {
	out := sorted[:0]
	for i, n := range sorted {
		if i == 0 || n != sorted[i-1] {
			out = append(out, n)
		}
	}
	return out
}

// Reset restores seed data. An empty name resets every collection.
func (s *Store) Reset(name string) (*ResetResult, error) {
	start := time.Now()
	var names []string
	if name == "" {
		names = s.Names()
	} else {
		if _, err := s.Collection(name); err != nil {
			return nil, err
		}
		names = []string{name}
	}

	err := s.Update(names, func(tx *Tx) error {
		for _, n := range names {
			if err := tx.cols[n].loadSeed(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observer.OnReset(names, time.Since(start))
	return &ResetResult{Collections: names, Message: "State reset to seed data"}, nil
}

// Clear empties a collection without restoring seed data. An empty name
// clears every collection. It returns the number of records removed.
func (s *Store) Clear(name string) (int, error) {
	if name != "" {
		c, err := s.Collection(name)
		if err != nil {
			return 0, err
		}
		return c.Clear(), nil
	}
	total := 0
	for _, n := range s.Names() {
		c, err := s.Collection(n)
		if err != nil {
			return total, err
		}
		total += c.Clear()
	}
	return total, nil
}

// Overview summarizes the store.
func (s *Store) Overview() Overview {
	names := s.Names()
	total := 0
	for _, n := range names {
		if c, err := s.Collection(n); err == nil {
			total += c.Count()
		}
	}
	return Overview{Collections: len(names), TotalItems: total, Names: names}
}

// Snapshot returns copies of every record, keyed by collection name.
// The view is consistent across collections.
func (s *Store) Snapshot() map[string][]map[string]any {
	names := s.Names()
	out := make(map[string][]map[string]any, len(names))
	_ = s.View(names, func(tx *Tx) error {
		for _, n := range names {
			out[n] = tx.cols[n].all()
		}
		return nil
	})
	return out
}
