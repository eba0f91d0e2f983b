package engine

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"

	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
)

// ProposeRequest is an operation proposed toward another chain.
type ProposeRequest struct {
	ProtocolID    ir.ProtocolID
	DstChainID    uint64
	TargetAddress []byte
	Selector      ir.Selector
	Params        []byte
}

func (r ProposeRequest) validate() error {
	if n := len(r.TargetAddress); n == 0 || n > ir.MaxAddressLength {
		return errorsmod.Wrapf(ir.ErrInvalidOperation, "target address has %d bytes", n)
	}
	if len(r.Params) > ir.MaxParamsLength {
		return errorsmod.Wrapf(ir.ErrInvalidOperation, "params has %d bytes, max %d", len(r.Params), ir.MaxParamsLength)
	}
	return r.Selector.Validate()
}

// ProposeToOtherChain records an outbound proposal and emits exactly one
// ProposeEvent for it. Checks, in order: request validity,
// ProtocolNotRegistered, UnauthorizedProposer. The event is appended to
// the proposals outbox with the next nonce and queued for Run after commit.
func (e *Engine) ProposeToOtherChain(ctx context.Context, caller ir.Account, req ProposeRequest) (ev ir.ProposeEvent, err error) {
	start := time.Now()
	defer func() { err = e.finish(CallPropose, start, err) }()

	e.logger.Debug("call received", "call", CallPropose, "caller", caller, "protocol", req.ProtocolID.String(), "dst_chain", req.DstChainID)

	if err := req.validate(); err != nil {
		return ir.ProposeEvent{}, err
	}

	err = e.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := requireConfig(ctx, tx); err != nil {
			return err
		}
		cfg, err := readProtocol(ctx, tx, req.ProtocolID)
		if err != nil {
			return err
		}
		if !cfg.IsProposer(caller) {
			return errorsmod.Wrapf(ir.ErrUnauthorizedProposer, "%s on %s", caller, cfg.ID)
		}

		ev = ir.ProposeEvent{
			ID:            e.ids.Generate(),
			ProtocolID:    req.ProtocolID,
			DstChainID:    req.DstChainID,
			TargetAddress: req.TargetAddress,
			Selector:      req.Selector,
			Params:        req.Params,
			Proposer:      caller,
			Seq:           e.clock.Next(),
		}
		nonce, err := tx.AppendProposal(ctx, ev)
		if err != nil {
			return err
		}
		ev.Nonce = nonce
		return nil
	})
	if err != nil {
		return ir.ProposeEvent{}, err
	}

	if !e.queue.Enqueue(ev) {
		e.logger.Warn("event queue closed, proposal kept in outbox only", "event_id", ev.ID, "nonce", ev.Nonce)
	}
	e.metrics.ProposalEmitted(ev.ProtocolID.String())
	e.logger.Info("proposal emitted",
		"event_id", ev.ID,
		"protocol", ev.ProtocolID.String(),
		"dst_chain", ev.DstChainID,
		"nonce", ev.Nonce,
		"seq", ev.Seq,
	)
	return ev, nil
}
