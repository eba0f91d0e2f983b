package engine

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/roach88/spotter/internal/ir"
)

// EventSink receives committed proposal events from Run.
// Deliver is called from the Run goroutine only.
type EventSink interface {
	Deliver(ctx context.Context, ev ir.ProposeEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev ir.ProposeEvent) error

// Deliver calls f.
func (f EventSinkFunc) Deliver(ctx context.Context, ev ir.ProposeEvent) error {
	return f(ctx, ev)
}

// JSONLinesSink writes each event as one JSON object per line.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesSink creates a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w)}
}

// Deliver encodes ev.
func (s *JSONLinesSink) Deliver(_ context.Context, ev ir.ProposeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(ev)
}
