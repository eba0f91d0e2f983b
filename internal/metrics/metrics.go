// Package metrics exposes spotter lifecycle and HTTP metrics as Prometheus
// collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spotter"

const (
	LabelCall     = "call"
	LabelResult   = "result"
	LabelProtocol = "protocol"
	LabelMethod   = "method"
	LabelRoute    = "route"
	LabelCode     = "code"
)

// ResultOK labels successful calls; failures are labelled with their kind.
const ResultOK = "ok"

// Collector records engine lifecycle metrics. It implements engine.Recorder.
type Collector struct {
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	signatures   *prometheus.CounterVec
	executed     *prometheus.CounterVec
	proposals    *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
}

// NewCollector registers the lifecycle collectors with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "calls_total",
			Help:      "engine calls by call name and result kind",
		}, []string{LabelCall, LabelResult}),
		callDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "call_duration_seconds",
			Help:      "engine call latency including the store transaction",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{LabelCall}),
		signatures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "signatures_accepted_total",
			Help:      "keeper signatures newly merged into attested sets",
		}, []string{LabelProtocol}),
		executed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_executed_total",
			Help:      "operations executed",
		}, []string{LabelProtocol}),
		proposals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbound",
			Name:      "proposals_total",
			Help:      "proposal events emitted toward other chains",
		}, []string{LabelProtocol}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbound",
			Name:      "deliveries_total",
			Help:      "proposal event deliveries to sinks",
		}, []string{LabelResult}),
	}
}

// ObserveCall records one engine call. kind is "" on success.
func (c *Collector) ObserveCall(call, kind string, elapsed time.Duration) {
	result := kind
	if result == "" {
		result = ResultOK
	}
	c.calls.WithLabelValues(call, result).Inc()
	c.callDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

func (c *Collector) SignaturesAccepted(protocol string, n int) {
	if n > 0 {
		c.signatures.WithLabelValues(protocol).Add(float64(n))
	}
}

func (c *Collector) OperationExecuted(protocol string) {
	c.executed.WithLabelValues(protocol).Inc()
}

func (c *Collector) ProposalEmitted(protocol string) {
	c.proposals.WithLabelValues(protocol).Inc()
}

func (c *Collector) EventDelivered(ok bool) {
	result := ResultOK
	if !ok {
		result = "error"
	}
	c.deliveries.WithLabelValues(result).Inc()
}
