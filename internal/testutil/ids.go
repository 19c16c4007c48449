package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable, UUID-shaped identifiers for tests.
//
// The n-th call to Generate() returns "00000000-0000-7000-8000-" followed by
// n as 12 hex digits, so ids sort in generation order and golden files stay
// stable across runs.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu sync.Mutex
	n  uint64
}

// NewSequenceIDs creates a generator whose first id ends in ...000000000001.
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

// Generate returns the next id in the sequence.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012x", g.n)
}

// Count returns how many ids have been generated.
func (g *SequenceIDs) Count() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts the sequence.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
