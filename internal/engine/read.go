package engine

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/consensus"
	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
)

// Config returns the global configuration, or ir.ErrNotInitialized.
func (e *Engine) Config(ctx context.Context) (ir.GlobalConfig, error) {
	var cfg ir.GlobalConfig
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		cfg, err = requireConfig(ctx, tx)
		return err
	})
	return cfg, err
}

// Protocol returns a protocol configuration, or ir.ErrProtocolNotRegistered.
func (e *Engine) Protocol(ctx context.Context, id ir.ProtocolID) (ir.ProtocolConfig, error) {
	var cfg ir.ProtocolConfig
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		cfg, err = readProtocol(ctx, tx, id)
		return err
	})
	return cfg, err
}

// Protocols returns every registered protocol in creation order.
func (e *Engine) Protocols(ctx context.Context) ([]ir.ProtocolConfig, error) {
	var out []ir.ProtocolConfig
	err := e.store.View(ctx, func(tx *store.Tx) error {
		ids, err := tx.ListProtocols(ctx)
		if err != nil {
			return err
		}
		out = make([]ir.ProtocolConfig, 0, len(ids))
		for _, id := range ids {
			cfg, err := readProtocol(ctx, tx, id)
			if err != nil {
				return err
			}
			out = append(out, cfg)
		}
		return nil
	})
	return out, err
}

// OperationStatus is an operation record with its consensus evaluated
// against the protocol's current keeper set and rate.
type OperationStatus struct {
	ir.OperationRecord
	Valid            int  `json:"valid"`
	Threshold        int  `json:"threshold"`
	ConsensusReached bool `json:"consensus_reached"`
}

// Operation returns the status of a loaded operation, or
// ir.ErrOperationNotFound.
func (e *Engine) Operation(ctx context.Context, hash common.Hash) (OperationStatus, error) {
	var st OperationStatus
	err := e.store.View(ctx, func(tx *store.Tx) error {
		rec, err := readOperation(ctx, tx, hash)
		if err != nil {
			return err
		}
		st, err = status(ctx, tx, rec)
		return err
	})
	return st, err
}

// Operations lists loaded operations in load order. A zero protocol id
// lists every protocol.
func (e *Engine) Operations(ctx context.Context, protocol ir.ProtocolID) ([]OperationStatus, error) {
	var out []OperationStatus
	err := e.store.View(ctx, func(tx *store.Tx) error {
		recs, err := tx.ListOperations(ctx, protocol)
		if err != nil {
			return err
		}
		out = make([]OperationStatus, 0, len(recs))
		for _, rec := range recs {
			st, err := status(ctx, tx, rec)
			if err != nil {
				return err
			}
			out = append(out, st)
		}
		return nil
	})
	return out, err
}

func status(ctx context.Context, tx *store.Tx, rec ir.OperationRecord) (OperationStatus, error) {
	cfg, err := readProtocol(ctx, tx, rec.Operation.ProtocolID)
	if err != nil {
		return OperationStatus{}, err
	}
	r := consensus.Evaluate(cfg.Keepers, cfg.ConsensusTargetRate, rec.Signers)
	return OperationStatus{
		OperationRecord:  rec,
		Valid:            r.Valid,
		Threshold:        r.Threshold,
		ConsensusReached: r.ConsensusReached,
	}, nil
}

// Proposals returns up to limit proposal events with nonce >= from.
// A non-positive limit returns every remaining event.
func (e *Engine) Proposals(ctx context.Context, from uint64, limit int) ([]ir.ProposeEvent, error) {
	var out []ir.ProposeEvent
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.ReadProposals(ctx, from, limit)
		return err
	})
	return out, err
}

// Trace step names.
const (
	StepLoaded   = "loaded"
	StepAttested = "attested"
	StepExecuted = "executed"
)

// TraceStep is one recorded lifecycle transition of an operation.
type TraceStep struct {
	Seq    int64           `json:"seq"`
	Step   string          `json:"step"`
	Signer *common.Address `json:"signer,omitempty"`
}

// Trace returns the lifecycle of an operation ordered by seq.
func (e *Engine) Trace(ctx context.Context, hash common.Hash) ([]TraceStep, error) {
	var steps []TraceStep
	err := e.store.View(ctx, func(tx *store.Tx) error {
		rec, err := readOperation(ctx, tx, hash)
		if err != nil {
			return err
		}
		log, err := tx.ReadAttestationLog(ctx, hash)
		if err != nil {
			return err
		}

		steps = append(steps, TraceStep{Seq: rec.LoadedSeq, Step: StepLoaded})
		for _, a := range log {
			signer := a.Signer
			steps = append(steps, TraceStep{Seq: a.Seq, Step: StepAttested, Signer: &signer})
		}
		if rec.Executed {
			steps = append(steps, TraceStep{Seq: rec.ExecutedSeq, Step: StepExecuted})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Seq < steps[j].Seq })
	return steps, nil
}
