package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPCollector records API request metrics.
type HTTPCollector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPCollector registers the HTTP collectors with reg.
func NewHTTPCollector(reg prometheus.Registerer) *HTTPCollector {
	f := promauto.With(reg)
	return &HTTPCollector{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route template and status code",
		}, []string{LabelMethod, LabelRoute, LabelCode}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelMethod, LabelRoute}),
	}
}

// Observe records one request. route is the route template, not the raw
// path, so label cardinality stays bounded.
func (h *HTTPCollector) Observe(method, route string, code int, elapsed time.Duration) {
	h.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	h.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

// NewStatusRecorder wraps w with a default status of 200.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}
