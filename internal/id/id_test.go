package id

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
)

// --- UUID Tests ---

func TestUUID_Format(t *testing.T) {
	id := UUID()

	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidRegex.MatchString(id) {
		t.Errorf("UUID() = %q, does not match UUID v4 format", id)
	}
}

func TestUUID_Uniqueness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := UUID()
		if seen[id] {
			t.Fatalf("UUID() generated duplicate: %s", id)
		}
		seen[id] = true
	}
}

// --- Prefixed Tests ---

func TestPrefixed_Format(t *testing.T) {
	id := Prefixed("prod")

	if !strings.HasPrefix(id, "prod-") {
		t.Fatalf("Prefixed(\"prod\") = %q, want prod- prefix", id)
	}
	if len(id) != len("prod-")+36 {
		t.Errorf("Prefixed(\"prod\") length = %d, want %d", len(id), len("prod-")+36)
	}
	// Version nibble of a v7 UUID.
	if id[len("prod-")+14] != '7' {
		t.Errorf("Prefixed(\"prod\") = %q, want UUID v7 suffix", id)
	}
}

func TestPrefixed_TrailingDash(t *testing.T) {
	id := Prefixed("cust-")
	if strings.HasPrefix(id, "cust--") {
		t.Errorf("Prefixed(\"cust-\") = %q, doubled separator", id)
	}
}

func TestPrefixed_EmptyPrefix(t *testing.T) {
	id := Prefixed("")
	if len(id) != 36 {
		t.Errorf("Prefixed(\"\") = %q, want bare UUID", id)
	}
}

func TestPrefixed_SortsInCreationOrder(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = Prefixed("sale")
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for i := range ids {
		if ids[i] != sorted[i] {
			t.Fatalf("ids not generated in sortable order at %d: %s vs %s", i, ids[i], sorted[i])
		}
	}
}

func TestPrefixed_Concurrent(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool, 1000)
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := Prefixed("bc")
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id: %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

// --- Short Tests ---

func TestShort_Format(t *testing.T) {
	id := Short()
	if len(id) != 16 {
		t.Errorf("Short() length = %d, want 16", len(id))
	}
	if !regexp.MustCompile(`^[0-9a-f]{16}$`).MatchString(id) {
		t.Errorf("Short() = %q, want lowercase hex", id)
	}
}

// --- Sequence Tests ---

func TestSequence_Next(t *testing.T) {
	seq := NewSequence("INV", 6)

	if got := seq.Next(); got != "INV-000001" {
		t.Errorf("first Next() = %q, want INV-000001", got)
	}
	if got := seq.Next(); got != "INV-000002" {
		t.Errorf("second Next() = %q, want INV-000002", got)
	}
}

func TestSequence_Observe(t *testing.T) {
	seq := NewSequence("INV", 4)
	seq.Observe(41)
	if got := seq.Next(); got != "INV-0042" {
		t.Errorf("Next() after Observe(41) = %q, want INV-0042", got)
	}

	// Observing a lower value never moves the sequence backwards.
	seq.Observe(3)
	if got := seq.Next(); got != "INV-0043" {
		t.Errorf("Next() = %q, want INV-0043", got)
	}
}

func TestSequence_Reset(t *testing.T) {
	seq := NewSequence("INV", 0)
	seq.Next()
	seq.Next()
	seq.Reset()
	if got := seq.Next(); got != "INV-000001" {
		t.Errorf("Next() after Reset = %q, want INV-000001", got)
	}
}

func TestSequence_ConcurrentUnique(t *testing.T) {
	seq := NewSequence("INV", 6)
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				v := seq.Next()
				mu.Lock()
				if seen[v] {
					t.Errorf("duplicate sequence value %s", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 400 {
		t.Errorf("got %d distinct values, want 400", len(seen))
	}
}
