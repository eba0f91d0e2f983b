package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/api"
	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/metrics"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen     string
	EventsOut  string   // "-" for stdout, "" to disable, else a file appended to
	Targets    []string // address=url webhook targets
	LogTargets []string // addresses whose calls are only logged

	// Ready, if set, receives the bound address once the server listens
	// (for testing).
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long: `Serve the ledger's HTTP API and deliver proposal events.

The ledger database is created if it doesn't exist. Executed operations
are dispatched to the registered targets. Proposal events are written as
JSON lines to --events-out. Prometheus metrics are served on /metrics.

Example:
  spotter serve --db ./spotter.db --listen :8080 \
    --target 0xbeef=http://localhost:9000/calls --events-out ./events.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&opts.EventsOut, "events-out", "-", `proposal event output ("-" for stdout, "" to disable)`)
	cmd.Flags().StringSliceVar(&opts.Targets, "target", nil, "webhook target as <address>=<url> (repeatable)")
	cmd.Flags().StringSliceVar(&opts.LogTargets, "log-target", nil, "target address whose calls are logged and accepted (repeatable)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, slog.LevelInfo)
	slog.SetDefault(logger)

	targets, err := parseTargets(opts.Targets, opts.LogTargets, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid targets", err)
	}

	var events io.Writer
	switch opts.EventsOut {
	case "":
	case "-":
		events = cmd.OutOrStdout()
	default:
		f, err := os.OpenFile(opts.EventsOut, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open events output", err)
		}
		defer f.Close()
		events = f
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eopts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.NewCollector(reg)),
	}
	if events != nil {
		eopts = append(eopts, engine.WithEventSink(engine.NewJSONLinesSink(events)))
	}
	eopts = append(eopts, targets...)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	l, err := openLedger(ctx, opts.RootOptions, cmd, eopts...)
	if err != nil {
		return err
	}
	defer l.Close()

	srv := api.NewServer(l.Engine, api.Options{Logger: logger, Registerer: reg, Gatherer: reg}).HTTPServer(opts.Listen)

	runDone := make(chan error, 1)
	go func() { runDone <- l.Run(ctx) }()

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		cancel()
		<-runDone
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	logger.Info("serving", "addr", ln.Addr().String(), "db", opts.Database, "targets", len(targets))
	if opts.Ready != nil {
		opts.Ready <- ln.Addr().String()
	}

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ln) }()

	select {
	case err := <-serveDone:
		cancel()
		<-runDone
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down server", "error", err)
	}

	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "event delivery error", err)
	}
	if pending := l.Pending(); pending > 0 {
		logger.Warn("undelivered events remain in the outbox", "count", pending)
	}
	logger.Info("server stopped gracefully")
	return nil
}
