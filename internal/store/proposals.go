package store

import (
	"context"
	"fmt"

	"github.com/roach88/spotter/internal/ir"
)

// AppendProposal appends an event to the outbound proposal outbox and
// assigns it the next nonce (0, 1, 2, ... across the ledger).
// The event's Nonce field is ignored on input.
func (t *Tx) AppendProposal(ctx context.Context, ev ir.ProposeEvent) (nonce uint64, err error) {
	var next int64
	if err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(nonce) + 1, 0) FROM proposals
	`).Scan(&next); err != nil {
		return 0, fmt.Errorf("append proposal: next nonce: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO proposals
		(nonce, id, protocol_id, dst_chain_id, target_address, selector_kind, selector, params, proposer, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		next,
		ev.ID,
		ev.ProtocolID[:],
		int64(ev.DstChainID),
		[]byte(ev.TargetAddress),
		int(ev.Selector.Kind()),
		ev.Selector.Wire(),
		nonNil(ev.Params),
		ev.Proposer.Bytes(),
		ev.Seq,
	)
	if err != nil {
		return 0, fmt.Errorf("append proposal: %w", err)
	}
	return uint64(next), nil
}

// ReadProposals returns up to limit events with nonce >= from, ascending.
// A non-positive limit returns every remaining event.
func (t *Tx) ReadProposals(ctx context.Context, from uint64, limit int) ([]ir.ProposeEvent, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT nonce, id, protocol_id, dst_chain_id, target_address, selector_kind, selector, params, proposer, seq
		FROM proposals
		WHERE nonce >= ?
		ORDER BY nonce ASC
		LIMIT ?
	`, int64(from), limit)
	if err != nil {
		return nil, fmt.Errorf("read proposals: %w", err)
	}
	defer rows.Close()

	events := []ir.ProposeEvent{}
	for rows.Next() {
		var (
			ev         ir.ProposeEvent
			nonce      int64
			protocolID []byte
			dstChain   int64
			target     []byte
			kind       int
			selector   []byte
			params     []byte
			proposer   []byte
		)
		if err := rows.Scan(&nonce, &ev.ID, &protocolID, &dstChain, &target, &kind, &selector, &params, &proposer, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		sel, err := ir.DecodeSelector(ir.SelectorKind(kind), selector)
		if err != nil {
			return nil, fmt.Errorf("proposal %d: %w", nonce, err)
		}
		ev.Nonce = uint64(nonce)
		copy(ev.ProtocolID[:], protocolID)
		ev.DstChainID = uint64(dstChain)
		ev.TargetAddress = target
		ev.Selector = sel
		ev.Params = params
		ev.Proposer = ir.AccountFromBytes(proposer)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return events, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
