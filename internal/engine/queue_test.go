package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spotter/internal/ir"
)

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue()

	ok := q.Enqueue(ir.ProposeEvent{ID: "ev-1", Nonce: 0})
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, "ev-1", got.ID)
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for i := uint64(0); i < 3; i++ {
		q.Enqueue(ir.ProposeEvent{Nonce: i})
	}

	for want := uint64(0); want < 3; want++ {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, e.Nonce)
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newEventQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(ir.ProposeEvent{ID: "ev-late"})
	}()

	select {
	case <-q.Wait():
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, "ev-late", e.ID)
	case <-time.After(time.Second):
		t.Fatal("wait did not signal")
	}
}

func TestEventQueue_Close_WakesWaiters(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("close did not wake waiter")
	}
}

func TestEventQueue_Enqueue_AfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close() // second close is a no-op

	ok := q.Enqueue(ir.ProposeEvent{ID: "ev-after-close"})
	assert.False(t, ok, "enqueue after close should return false")
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()

	assert.Equal(t, 0, q.Len())

	q.Enqueue(ir.ProposeEvent{ID: "1"})
	assert.Equal(t, 1, q.Len())

	q.Enqueue(ir.ProposeEvent{ID: "2"})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())

	q.TryDequeue()
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(ir.ProposeEvent{Nonce: uint64(producerID*1000 + i)})
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[uint64]bool, producers*eventsPerProducer)
	for {
		e, ok := q.TryDequeue()
		if !ok {
			break
		}
		require.False(t, seen[e.Nonce], "event %d dequeued twice", e.Nonce)
		seen[e.Nonce] = true
	}
	assert.Len(t, seen, producers*eventsPerProducer)
}
