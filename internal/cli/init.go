package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/ir"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <genesis.cue>",
		Short: "Initialize the ledger from a genesis file",
		Long: `Initialize the ledger from a CUE genesis file.

Writes the global configuration and creates the governance protocol with
the genesis keepers, executors and consensus rate. The genesis admin
becomes the ledger administrator. A ledger can be initialized only once.

Example:
  spotter init --db ./spotter.db ./genesis.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runInit(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	g, err := loadGenesis(path)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid genesis", err)
	}
	admin, params, err := g.InitParams()
	if err != nil {
		return WrapExitError(ExitFailure, "invalid genesis", err)
	}

	return withLedger(opts, cmd, func(ctx context.Context, l *ledger) error {
		cfg, err := l.Initialize(ctx, admin, params)
		if err != nil {
			return formatter.EngineError(err)
		}
		return formatter.Result(cfg, func(w io.Writer) {
			fmt.Fprintf(w, "Ledger initialized (home chain %d, seq %d)\n", cfg.HomeChainID, cfg.InitializedSeq)
			fmt.Fprintf(w, "  admin: %s\n", cfg.Admin)
			fmt.Fprintf(w, "  governance protocol %s: %d keepers, rate %d\n",
				ir.GovernanceProtocolID, len(params.Keepers), params.ConsensusTargetRate)
		})
	})
}
