package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/metrics"
)

// CallerHeader carries the caller's ledger identity.
const CallerHeader = "X-Spotter-Caller"

// Ledger is the engine surface the API serves. *engine.Engine implements it.
type Ledger interface {
	LoadOperation(ctx context.Context, caller ir.Account, op ir.Operation, hash common.Hash) (ir.OperationRecord, error)
	SignOperation(ctx context.Context, caller ir.Account, hash common.Hash, signatures [][]byte) (engine.SignResult, error)
	ExecuteOperation(ctx context.Context, caller ir.Account, hash common.Hash) (engine.ExecuteResult, error)
	ExecuteGovOperation(ctx context.Context, caller ir.Account, hash common.Hash, target ir.ProtocolID) (engine.ExecuteResult, error)
	ProposeToOtherChain(ctx context.Context, caller ir.Account, req engine.ProposeRequest) (ir.ProposeEvent, error)
	Config(ctx context.Context) (ir.GlobalConfig, error)
	Protocol(ctx context.Context, id ir.ProtocolID) (ir.ProtocolConfig, error)
	Protocols(ctx context.Context) ([]ir.ProtocolConfig, error)
	Operation(ctx context.Context, hash common.Hash) (engine.OperationStatus, error)
	Trace(ctx context.Context, hash common.Hash) ([]engine.TraceStep, error)
	Proposals(ctx context.Context, from uint64, limit int) ([]ir.ProposeEvent, error)
}

var _ Ledger = (*engine.Engine)(nil)

// Options configures a Server.
type Options struct {
	Logger *slog.Logger
	// Registerer receives the HTTP collectors; Gatherer backs /metrics.
	// Both nil disables metrics.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Server routes HTTP requests to a Ledger.
type Server struct {
	ledger  Ledger
	logger  *slog.Logger
	metrics *metrics.HTTPCollector
	router  *mux.Router
}

type route struct {
	name    string
	method  string
	pattern string
	handler http.HandlerFunc
}

// NewServer builds the router for ledger.
func NewServer(ledger Ledger, opts Options) *Server {
	s := &Server{
		ledger: ledger,
		logger: opts.Logger,
		router: mux.NewRouter().StrictSlash(true),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if opts.Registerer != nil {
		s.metrics = metrics.NewHTTPCollector(opts.Registerer)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(s.observe)
	for _, r := range s.routes() {
		v1.Methods(r.method).Path(r.pattern).Name(r.name).Handler(r.handler)
	}

	if opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) routes() []route {
	return []route{
		{"LoadOperation", http.MethodPost, "/operations", s.loadOperation},
		{"SignOperation", http.MethodPost, "/operations/{hash}/signatures", s.signOperation},
		{"ExecuteOperation", http.MethodPost, "/operations/{hash}/execute", s.executeOperation},
		{"ExecuteGovOperation", http.MethodPost, "/governance/{hash}/execute", s.executeGovOperation},
		{"Propose", http.MethodPost, "/proposals", s.propose},
		{"GetOperation", http.MethodGet, "/operations/{hash}", s.getOperation},
		{"GetTrace", http.MethodGet, "/operations/{hash}/trace", s.getTrace},
		{"ListProtocols", http.MethodGet, "/protocols", s.listProtocols},
		{"GetProtocol", http.MethodGet, "/protocols/{id}", s.getProtocol},
		{"GetConfig", http.MethodGet, "/config", s.getConfig},
		{"ListProposals", http.MethodGet, "/proposals", s.listProposals},
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer wraps s in an *http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// observe logs and measures every API request by route template.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := metrics.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		template := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if t, err := cur.GetPathTemplate(); err == nil {
				template = t
			}
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.Observe(r.Method, template, rec.Status, elapsed)
		}

		level := slog.LevelInfo
		if rec.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "api",
			"method", r.Method,
			"route", template,
			"status", rec.Status,
			"caller", r.Header.Get(CallerHeader),
			"duration", elapsed,
		)
	})
}
