package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/ir"
)

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		after uint64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List proposal events from the outbox",
		Long: `List outbound proposal events in nonce order.

Without --after, listing starts at nonce 0. A relayer polls with --after
set to the last nonce it delivered.

Example:
  spotter events --after 10 --limit 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			var from uint64
			if cmd.Flags().Changed("after") {
				from = after + 1
			}
			return withLedger(rootOpts, cmd, func(ctx context.Context, l *ledger) error {
				events, err := l.Proposals(ctx, from, limit)
				if err != nil {
					return formatter.EngineError(err)
				}
				if events == nil {
					events = []ir.ProposeEvent{}
				}
				return formatter.Result(events, func(w io.Writer) {
					if len(events) == 0 {
						fmt.Fprintln(w, "No events.")
						return
					}
					for _, ev := range events {
						fmt.Fprintf(w, "#%d %s %s -> chain %d %s %s params %s\n",
							ev.Nonce, ev.ID, ev.ProtocolID, ev.DstChainID,
							hexutil.Encode(ev.TargetAddress), ev.Selector, hexutil.Encode(ev.Params))
					}
				})
			})
		},
	}

	cmd.Flags().Uint64Var(&after, "after", 0, "list events with a nonce greater than this")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events (0 for all)")
	return cmd
}
