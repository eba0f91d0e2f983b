package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator returns prefix-0001, prefix-0002, ... without end.
//
// Scenarios use it so proposal event ids are stable in golden traces no
// matter how many proposals a scenario makes.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator. An empty prefix uses "event".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "event"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
