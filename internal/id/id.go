package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// UUID generates a random UUID v4.
func UUID() string {
	return uuid.NewString()
}

// Prefixed generates a record id of the form "{prefix}-{uuidv7}".
// UUID v7 embeds a millisecond timestamp, so ids generated for the same
// prefix sort in creation order. Falls back to v4 if v7 generation fails.
func Prefixed(prefix string) string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	prefix = strings.TrimSuffix(prefix, "-")
	if prefix == "" {
		return u.String()
	}
	return prefix + "-" + u.String()
}

// Short generates a short random hex ID (16 characters). The mock server
// uses it for request ids.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Sequence hands out monotonic, zero-padded identifiers like "INV-000001".
// The zero value is not usable; create one with NewSequence.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	width  int
	next   int64
}

// NewSequence creates a sequence that starts at 1.
func NewSequence(prefix string, width int) *Sequence {
	if width <= 0 {
		width = 6
	}
	return &Sequence{prefix: prefix, width: width, next: 1}
}

// Next returns the next identifier in the sequence.
func (s *Sequence) Next() string {
	s.mu.Lock()
	n := s.next
	s.next++
	s.mu.Unlock()
	return fmt.Sprintf("%s-%0*d", s.prefix, s.width, n)
}

// Observe advances the sequence past n so the next value is greater than n.
// Used when seeding records that already carry sequence numbers.
func (s *Sequence) Observe(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= s.next {
		s.next = n + 1
	}
}

// Reset restarts the sequence at 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	s.next = 1
	s.mu.Unlock()
}
