package engine

import "sync/atomic"

// Clock is the monotonic logical clock stamping ledger mutations.
//
// Seqs are unique and strictly increasing. A seq taken by a call that
// later rolls back is skipped, so recorded seqs may have gaps.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next seq is start+1.
// Used at startup to resume after the last recorded mutation.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
