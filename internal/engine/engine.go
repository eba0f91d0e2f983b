package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/spotter/internal/governance"
	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
)

// Recorder receives lifecycle measurements. internal/metrics implements it
// with Prometheus collectors; the default discards everything.
type Recorder interface {
	// ObserveCall records one engine call. kind is "" on success.
	ObserveCall(call, kind string, elapsed time.Duration)
	SignaturesAccepted(protocol string, n int)
	OperationExecuted(protocol string)
	ProposalEmitted(protocol string)
	EventDelivered(ok bool)
}

type noopRecorder struct{}

func (noopRecorder) ObserveCall(string, string, time.Duration) {}
func (noopRecorder) SignaturesAccepted(string, int) {}
func (noopRecorder) OperationExecuted(string) {}
func (noopRecorder) ProposalEmitted(string) {}
func (noopRecorder) EventDelivered(bool) {}

// Call names reported to the Recorder and in logs.
const (
	CallInitialize = "initialize"
	CallLoad       = "load"
	CallSign       = "sign"
	CallExecute    = "execute"
	CallExecuteGov = "execute_gov"
	CallPropose    = "propose"
)

// Engine drives the operation lifecycle against a store.
//
// Thread-safety model:
//   - lifecycle and read calls: safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - RegisterTarget(): safe from any goroutine
type Engine struct {
	store   *store.Store
	clock   *Clock
	queue   *eventQueue
	ids     IDGenerator
	logger  *slog.Logger
	metrics Recorder
	targets *router
	gov     *governance.Dispatcher
	sinks   []EventSink
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the lifecycle recorder.
func WithMetrics(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithClock sets the logical clock instead of resuming from the store.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the proposal event id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithTarget registers the handler for an allowed target address.
func WithTarget(addr ir.Account, t Target) Option {
	return func(e *Engine) {
		e.targets.register(addr, t)
	}
}

// WithEventSink adds a receiver for proposal events delivered by Run.
func WithEventSink(s EventSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, s)
	}
}

// New creates an Engine over s. Unless WithClock is given, the clock
// resumes after the highest seq recorded in the store.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:   s,
		queue:   newEventQueue(),
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
		metrics: noopRecorder{},
		targets: newRouter(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.gov = governance.NewDispatcher(e.logger)

	if e.clock == nil {
		last, err := s.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume clock: %w", err)
		}
		e.clock = NewClockAt(last)
	}
	return e, nil
}

// RegisterTarget registers or replaces the handler for a target address.
func (e *Engine) RegisterTarget(addr ir.Account, t Target) {
	e.targets.register(addr, t)
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Pending returns the number of proposal events not yet delivered.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Run delivers committed proposal events to the registered sinks.
// Blocks until ctx is cancelled or Stop is called; events still queued
// when Stop is called are delivered before Run returns.
//
// A sink failure is logged and delivery continues with the next sink and
// event. The proposals outbox is the durable record; relayers that miss
// an event re-read it by nonce.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("event delivery starting", "sinks", len(e.sinks))

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.deliver(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("event delivery stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed with the queue.
			if e.queue.Len() == 0 && e.queue.Closed() {
				e.logger.Info("event delivery stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the event queue, causing Run to return once drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) deliver(ctx context.Context, ev ir.ProposeEvent) {
	for _, s := range e.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			e.metrics.EventDelivered(false)
			e.logger.Error("event delivery failed",
				"event_id", ev.ID,
				"nonce", ev.Nonce,
				"protocol", ev.ProtocolID.String(),
				"error", err,
			)
			continue
		}
		e.metrics.EventDelivered(true)
	}
}

// finish records the outcome of a lifecycle call.
func (e *Engine) finish(call string, start time.Time, err error) error {
	kind := Kind(err)
	e.metrics.ObserveCall(call, kind, time.Since(start))
	if err != nil {
		e.logger.Warn("call rejected", "call", call, "kind", kind, "error", err)
	}
	return err
}
