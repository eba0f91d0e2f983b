package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
)

// DefaultSignChunk is the number of signatures sign submits per call.
const DefaultSignChunk = 4

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	var expected string

	cmd := &cobra.Command{
		Use:   "load <operation.json>",
		Short: "Load an operation into the ledger",
		Long: `Load an operation so keepers can sign it.

The caller must be an executor of the operation's protocol. The hash is
computed from the operation unless --hash supplies the value to check it
against.

Example:
  spotter load ./op.json --caller 0xe1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			caller, err := rootOpts.caller()
			if err != nil {
				return err
			}
			op, err := readOperation(cmd, args[0])
			if err != nil {
				return err
			}

			var hash common.Hash
			if expected != "" {
				if hash, err = parseHash(expected); err != nil {
					return err
				}
			} else if hash, err = ir.OperationHash(op); err != nil {
				return formatter.EngineError(err)
			}

			return withLedger(rootOpts, cmd, func(ctx context.Context, l *ledger) error {
				rec, err := l.LoadOperation(ctx, caller, op, hash)
				if err != nil {
					return formatter.EngineError(err)
				}
				return formatter.Result(rec, func(w io.Writer) {
					fmt.Fprintf(w, "Loaded %s (protocol %s, seq %d)\n", rec.Hash.Hex(), rec.Operation.ProtocolID, rec.LoadedSeq)
				})
			})
		},
	}

	cmd.Flags().StringVar(&expected, "hash", "", "expected operation hash")
	return cmd
}

// SignOutput is the output of the sign command.
type SignOutput struct {
	engine.SignResult
	Calls      int `json:"calls"`
	TotalAdded int `json:"total_added"`
}

// NewSignCommand creates the sign command.
func NewSignCommand(rootOpts *RootOptions) *cobra.Command {
	var chunk int

	cmd := &cobra.Command{
		Use:   "sign <hash> <signature>...",
		Short: "Submit keeper signatures for an operation",
		Long: `Submit keeper signatures for a loaded operation.

Signatures are submitted in calls of at most --chunk signatures. Each call
is atomic: a signature from a non-keeper or an invalid signature rejects
its whole call, while signatures accepted by earlier calls stay recorded.
Resubmitting a signature is a no-op.

Example:
  spotter sign 0x3c4a...e578 0x1b2c...01 0x77aa...1c --caller 0xe1`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			if chunk <= 0 {
				return NewExitError(ExitCommandError, "--chunk must be positive")
			}
			caller, err := rootOpts.caller()
			if err != nil {
				return err
			}
			hash, err := parseHash(args[0])
			if err != nil {
				return err
			}
			sigs := make([][]byte, 0, len(args)-1)
			for _, s := range args[1:] {
				b, err := hexutil.Decode(s)
				if err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("invalid signature %q", s), err)
				}
				sigs = append(sigs, b)
			}

			return withLedger(rootOpts, cmd, func(ctx context.Context, l *ledger) error {
				var out SignOutput
				for start := 0; start < len(sigs); start += chunk {
					end := min(start+chunk, len(sigs))
					res, err := l.SignOperation(ctx, caller, hash, sigs[start:end])
					if err != nil {
						formatter.VerboseLog("call %d rejected after %d signatures added", out.Calls+1, out.TotalAdded)
						return formatter.EngineError(err)
					}
					out.SignResult = res
					out.Calls++
					out.TotalAdded += len(res.Added)
				}
				return formatter.Result(out, func(w io.Writer) {
					fmt.Fprintf(w, "Signed %s: %d added in %d call(s)\n", hash.Hex(), out.TotalAdded, out.Calls)
					fmt.Fprintf(w, "  valid %d of threshold %d, consensus reached: %t\n", out.Valid, out.Threshold, out.ConsensusReached)
				})
			})
		},
	}

	cmd.Flags().IntVar(&chunk, "chunk", DefaultSignChunk, "signatures per call")
	return cmd
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <hash>",
		Short: "Execute an operation that reached consensus",
		Long: `Execute a loaded operation that reached consensus.

Governance operations are applied to the protocol registry; other
operations are dispatched to their target, which must be registered on the
engine (see serve --target). An operation executes at most once.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(rootOpts, cmd, args[0], nil)
		},
	}
}

// NewExecuteGovCommand creates the execute-gov command.
func NewExecuteGovCommand(rootOpts *RootOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "execute-gov <hash>",
		Short: "Execute a governance operation against a named protocol",
		Long: `Execute a governance operation, requiring its payload to target
--target-protocol. The operation must belong to the governance protocol.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ir.ParseProtocolID(target)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --target-protocol", err)
			}
			return runExecute(rootOpts, cmd, args[0], &id)
		},
	}

	cmd.Flags().StringVar(&target, "target-protocol", "", "protocol the governance payload must target")
	_ = cmd.MarkFlagRequired("target-protocol")
	return cmd
}

func runExecute(opts *RootOptions, cmd *cobra.Command, rawHash string, target *ir.ProtocolID) error {
	formatter := newFormatter(opts, cmd)

	caller, err := opts.caller()
	if err != nil {
		return err
	}
	hash, err := parseHash(rawHash)
	if err != nil {
		return err
	}

	return withLedger(opts, cmd, func(ctx context.Context, l *ledger) error {
		var res engine.ExecuteResult
		if target != nil {
			res, err = l.ExecuteGovOperation(ctx, caller, hash, *target)
		} else {
			res, err = l.ExecuteOperation(ctx, caller, hash)
		}
		if err != nil {
			return formatter.EngineError(err)
		}
		return formatter.Result(res, func(w io.Writer) {
			fmt.Fprintf(w, "Executed %s (protocol %s, seq %d)\n", res.Hash.Hex(), res.Protocol, res.Seq)
			if res.TargetProtocol != nil {
				fmt.Fprintf(w, "  %s applied to %s\n", res.Mutation, *res.TargetProtocol)
			}
		})
	})
}

// ProposeOptions holds flags for the propose command.
type ProposeOptions struct {
	*RootOptions
	Protocol     string
	DstChainID   uint64
	Target       string
	SelectorKind string
	Selector     string
	DispatchByID bool
	Params       string
}

// NewProposeCommand creates the propose command.
func NewProposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Propose an operation toward another chain",
		Long: `Record an outbound proposal and emit its event.

The caller must be a proposer of the protocol. The event is appended to
the proposals outbox with the next nonce; list it with "spotter events".

Example:
  spotter propose --protocol onefunc --dst-chain 56 --target 0xbeef \
    --selector-kind name --selector increment --caller 0xcafe`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropose(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Protocol, "protocol", "", "proposing protocol")
	cmd.Flags().Uint64Var(&opts.DstChainID, "dst-chain", 0, "destination chain id")
	cmd.Flags().StringVar(&opts.Target, "target", "", "target address on the destination chain (hex)")
	cmd.Flags().StringVar(&opts.SelectorKind, "selector-kind", "numeric", "selector kind (numeric|name|raw)")
	cmd.Flags().StringVar(&opts.Selector, "selector", "", "function selector value")
	cmd.Flags().BoolVar(&opts.DispatchByID, "dispatch-by-id", false, "mark a raw selector for dispatch by identifier")
	cmd.Flags().StringVar(&opts.Params, "params", "", "call parameters (hex)")
	_ = cmd.MarkFlagRequired("protocol")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("selector")

	return cmd
}

func runPropose(opts *ProposeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	caller, err := opts.caller()
	if err != nil {
		return err
	}
	id, err := ir.ParseProtocolID(opts.Protocol)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --protocol", err)
	}
	target, err := hexutil.Decode(opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --target", err)
	}
	sel, err := ir.ParseSelector(opts.SelectorKind, opts.Selector, opts.DispatchByID)
	if err != nil {
		return formatter.EngineError(err)
	}
	var params []byte
	if opts.Params != "" {
		if params, err = hexutil.Decode(opts.Params); err != nil {
			return WrapExitError(ExitCommandError, "invalid --params", err)
		}
	}

	return withLedger(opts.RootOptions, cmd, func(ctx context.Context, l *ledger) error {
		ev, err := l.ProposeToOtherChain(ctx, caller, engine.ProposeRequest{
			ProtocolID:    id,
			DstChainID:    opts.DstChainID,
			TargetAddress: target,
			Selector:      sel,
			Params:        params,
		})
		if err != nil {
			return formatter.EngineError(err)
		}
		return formatter.Result(ev, func(w io.Writer) {
			fmt.Fprintf(w, "Proposed %s (nonce %d, dst chain %d)\n", ev.ID, ev.Nonce, ev.DstChainID)
		})
	})
}

// withLedger runs fn against the --db ledger and closes it afterwards.
func withLedger(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, l *ledger) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := openLedger(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(ctx, l)
}
