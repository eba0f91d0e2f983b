package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/engine"
)

// TraceResult holds the lifecycle of one operation.
type TraceResult struct {
	Hash     common.Hash        `json:"hash"`
	Timeline []engine.TraceStep `json:"timeline"`
	Stats    TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Attestations int  `json:"attestations"`
	Executed     bool `json:"executed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <hash>",
		Short: "Show the lifecycle of an operation",
		Long: `Show the recorded lifecycle of an operation ordered by seq:
when it was loaded, each keeper attestation and its execution.

Examples:
  spotter trace 0x3c4a...e578
  spotter trace 0x3c4a...e578 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTrace(opts *RootOptions, rawHash string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	hash, err := parseHash(rawHash)
	if err != nil {
		return err
	}

	return withLedger(opts, cmd, func(ctx context.Context, l *ledger) error {
		steps, err := l.Trace(ctx, hash)
		if err != nil {
			return formatter.EngineError(err)
		}

		result := TraceResult{Hash: hash, Timeline: steps}
		for _, s := range steps {
			switch s.Step {
			case engine.StepAttested:
				result.Stats.Attestations++
			case engine.StepExecuted:
				result.Stats.Executed = true
			}
		}

		return formatter.Result(result, func(w io.Writer) {
			fmt.Fprintf(w, "Trace for %s\n\n", hash.Hex())
			fmt.Fprintln(w, "Timeline:")
			for _, s := range steps {
				if s.Signer != nil {
					fmt.Fprintf(w, "  [%d] %s by %s\n", s.Seq, s.Step, s.Signer.Hex())
				} else {
					fmt.Fprintf(w, "  [%d] %s\n", s.Seq, s.Step)
				}
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Stats: %d attestation(s), executed: %t\n", result.Stats.Attestations, result.Stats.Executed)
		})
	})
}
