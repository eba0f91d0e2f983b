package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
)

// ledger is an engine over the --db store for one command invocation.
type ledger struct {
	*engine.Engine
	store *store.Store
}

// openLedger opens the ledger database (creating it if it doesn't exist)
// and builds an engine over it. Warnings and errors are logged to stderr.
func openLedger(ctx context.Context, opts *RootOptions, cmd *cobra.Command, extra ...engine.Option) (*ledger, error) {
	if opts.Database == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, slog.LevelWarn)

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	eopts := append([]engine.Option{engine.WithLogger(logger)}, extra...)
	eng, err := engine.New(ctx, st, eopts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	return &ledger{Engine: eng, store: st}, nil
}

// Close stops event delivery and closes the database.
// Undelivered events stay in the proposals outbox.
func (l *ledger) Close() error {
	l.Stop()
	return l.store.Close()
}

// caller resolves --caller.
func (o *RootOptions) caller() (ir.Account, error) {
	if o.Caller == "" {
		return "", NewExitError(ExitCommandError, "--caller is required")
	}
	a, err := ir.ParseAccount(o.Caller)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid --caller", err)
	}
	return a, nil
}

// parseHash parses a 0x-prefixed 32-byte operation hash.
func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid hash %q", s), err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid hash %q: %d bytes, want %d", s, len(b), common.HashLength))
	}
	return common.BytesToHash(b), nil
}

// readOperation reads an operation JSON file; "-" reads stdin.
func readOperation(cmd *cobra.Command, path string) (ir.Operation, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return ir.Operation{}, WrapExitError(ExitCommandError, "failed to read operation", err)
	}

	var op ir.Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return ir.Operation{}, WrapExitError(ExitCommandError, "failed to parse operation", err)
	}
	return op, nil
}
