package engine

import (
	"sync"

	"github.com/roach88/spotter/internal/ir"
)

// eventQueue is a thread-safe FIFO of committed proposal events.
//
// The queue is unbounded so a burst of proposals never blocks the engine
// call that committed them.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []ir.ProposeEvent
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]ir.ProposeEvent, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e ir.ProposeEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
// Returns false if the queue is empty.
func (q *eventQueue) TryDequeue() (ir.ProposeEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return ir.ProposeEvent{}, false
	}

	e := q.events[0]

	// Release the slot's byte slices for GC.
	q.events[0] = ir.ProposeEvent{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
