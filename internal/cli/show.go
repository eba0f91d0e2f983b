package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
)

// NewShowCommand creates the show command group.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Inspect ledger state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "operation <hash>",
		Short:         "Show an operation and its consensus status",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseHash(args[0])
			if err != nil {
				return err
			}
			return show(rootOpts, cmd, func(ctx context.Context, l *ledger) (interface{}, func(io.Writer), error) {
				st, err := l.Operation(ctx, hash)
				return st, func(w io.Writer) { writeOperation(w, st) }, err
			})
		},
	})

	var protocolFilter string
	operations := &cobra.Command{
		Use:           "operations",
		Short:         "List loaded operations in load order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var id ir.ProtocolID
			if protocolFilter != "" {
				var err error
				if id, err = ir.ParseProtocolID(protocolFilter); err != nil {
					return WrapExitError(ExitCommandError, "invalid --protocol", err)
				}
			}
			return show(rootOpts, cmd, func(ctx context.Context, l *ledger) (interface{}, func(io.Writer), error) {
				ops, err := l.Operations(ctx, id)
				return ops, func(w io.Writer) {
					if len(ops) == 0 {
						fmt.Fprintln(w, "No operations.")
					}
					for _, st := range ops {
						fmt.Fprintf(w, "%s  %-8s  %-16s  %d/%d\n", st.Hash.Hex(), st.State, st.Operation.ProtocolID, st.Valid, st.Threshold)
					}
				}, err
			})
		},
	}
	operations.Flags().StringVar(&protocolFilter, "protocol", "", "only list operations of this protocol")
	cmd.AddCommand(operations)

	cmd.AddCommand(&cobra.Command{
		Use:           "protocol <id>",
		Short:         "Show a protocol's configuration",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ir.ParseProtocolID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid protocol id", err)
			}
			return show(rootOpts, cmd, func(ctx context.Context, l *ledger) (interface{}, func(io.Writer), error) {
				p, err := l.Protocol(ctx, id)
				return p, func(w io.Writer) { writeProtocol(w, p) }, err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "protocols",
		Short:         "List registered protocols",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return show(rootOpts, cmd, func(ctx context.Context, l *ledger) (interface{}, func(io.Writer), error) {
				ps, err := l.Protocols(ctx)
				return ps, func(w io.Writer) {
					for _, p := range ps {
						fmt.Fprintf(w, "%-16s  rate %-5d  fee %-6d  %d keepers\n", p.ID, p.ConsensusTargetRate, p.ProtocolFee, len(p.Keepers))
					}
				}, err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "config",
		Short:         "Show the global configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return show(rootOpts, cmd, func(ctx context.Context, l *ledger) (interface{}, func(io.Writer), error) {
				cfg, err := l.Config(ctx)
				return cfg, func(w io.Writer) {
					fmt.Fprintf(w, "home chain:  %d\n", cfg.HomeChainID)
					fmt.Fprintf(w, "admin:       %s\n", cfg.Admin)
					fmt.Fprintf(w, "executors:   %s\n", joinAccounts(cfg.Executors))
					fmt.Fprintf(w, "initialized: seq %d\n", cfg.InitializedSeq)
				}, err
			})
		},
	})

	return cmd
}

// show runs a read against the ledger and prints its result.
func show(opts *RootOptions, cmd *cobra.Command, read func(ctx context.Context, l *ledger) (interface{}, func(io.Writer), error)) error {
	formatter := newFormatter(opts, cmd)
	return withLedger(opts, cmd, func(ctx context.Context, l *ledger) error {
		data, text, err := read(ctx, l)
		if err != nil {
			return formatter.EngineError(err)
		}
		return formatter.Result(data, text)
	})
}

func writeOperation(w io.Writer, st engine.OperationStatus) {
	op := st.Operation
	fmt.Fprintf(w, "Operation %s\n", st.Hash.Hex())
	fmt.Fprintf(w, "  state:      %s (loaded seq %d", st.State, st.LoadedSeq)
	if st.Executed {
		fmt.Fprintf(w, ", executed seq %d", st.ExecutedSeq)
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintf(w, "  protocol:   %s\n", op.ProtocolID)
	fmt.Fprintf(w, "  route:      chain %d block %d nonce %d -> chain %d\n", op.SrcChainID, op.SrcBlockNumber, op.Nonce, op.DestChainID)
	fmt.Fprintf(w, "  target:     %s %s\n", op.Target(), op.Selector)
	fmt.Fprintf(w, "  consensus:  %d of %d (reached: %t)\n", st.Valid, st.Threshold, st.ConsensusReached)
	for _, s := range st.Signers {
		fmt.Fprintf(w, "    signer %s\n", s.Hex())
	}
}

func writeProtocol(w io.Writer, p ir.ProtocolConfig) {
	fmt.Fprintf(w, "Protocol %s (%s)\n", p.ID, p.ID.Hex())
	fmt.Fprintf(w, "  rate:      %d\n", p.ConsensusTargetRate)
	fmt.Fprintf(w, "  fee:       %d\n", p.ProtocolFee)
	fmt.Fprintf(w, "  executors: %s\n", joinAccounts(p.Executors))
	fmt.Fprintf(w, "  proposers: %s\n", joinAccounts(p.Proposers))
	fmt.Fprintf(w, "  targets:   %s\n", joinAccounts(p.AllowedTargets))
	fmt.Fprintf(w, "  keepers:   %d\n", len(p.Keepers))
	for _, k := range p.Keepers {
		fmt.Fprintf(w, "    %s\n", k.Hex())
	}
}

func joinAccounts(as []ir.Account) string {
	if len(as) == 0 {
		return "-"
	}
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
