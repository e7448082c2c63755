package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates unit ids "unit-1", "unit-2", … in order.
//
// Implements txn.IDGenerator. Log lines that carry unit ids are then stable
// across test runs.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "unit".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "unit"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedID returns the same unit id every time.
//
// Thread-safety: FixedID is stateless and safe for concurrent use.
type FixedID string

// Generate returns the fixed id, or "unit-fixed" when empty.
func (f FixedID) Generate() string {
	if f == "" {
		return "unit-fixed"
	}
	return string(f)
}
