package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/consensus"
	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
)

// InitParams are the one-time ledger bootstrap parameters.
type InitParams struct {
	HomeChainID         uint64
	ConsensusTargetRate uint64
	Keepers             []common.Address
	Executors           []ir.Account
}

// Initialize writes the global configuration and creates the governance
// protocol with the initial keepers and executors. caller becomes the
// administrator. A second call fails with ir.ErrAlreadyInitialized.
func (e *Engine) Initialize(ctx context.Context, caller ir.Account, p InitParams) (cfg ir.GlobalConfig, err error) {
	start := time.Now()
	defer func() { err = e.finish(CallInitialize, start, err) }()

	e.logger.Debug("call received", "call", CallInitialize, "caller", caller, "home_chain", p.HomeChainID)

	if len(caller.Bytes()) == 0 {
		return ir.GlobalConfig{}, errorsmod.Wrap(ir.ErrInvalidOperation, "administrator identity is empty")
	}
	if p.ConsensusTargetRate > ir.MaxConsensusTargetRate {
		return ir.GlobalConfig{}, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "rate %d exceeds %d", p.ConsensusTargetRate, ir.MaxConsensusTargetRate)
	}
	keepers := ir.DedupAddresses(p.Keepers)
	executors := dedupAccounts(p.Executors)
	if len(keepers) == 0 {
		return ir.GlobalConfig{}, errorsmod.Wrap(ir.ErrGovernanceLockout, "initial keeper set is empty")
	}
	if len(executors) == 0 {
		return ir.GlobalConfig{}, errorsmod.Wrap(ir.ErrGovernanceLockout, "initial executor set is empty")
	}
	for _, x := range executors {
		if n := len(x.Bytes()); n == 0 || n > ir.MaxAddressLength {
			return ir.GlobalConfig{}, errorsmod.Wrapf(ir.ErrInvalidOperation, "executor %q has %d bytes", x, n)
		}
	}

	err = e.store.Update(ctx, func(tx *store.Tx) error {
		seq := e.clock.Next()
		cfg = ir.GlobalConfig{
			HomeChainID:    p.HomeChainID,
			Admin:          caller,
			Executors:      executors,
			InitializedSeq: seq,
		}
		inserted, err := tx.InsertConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if !inserted {
			return errorsmod.Wrap(ir.ErrAlreadyInitialized, "ledger configuration already written")
		}

		if _, err := tx.UpsertProtocol(ctx, ir.GovernanceProtocolID, p.ConsensusTargetRate, 0, seq); err != nil {
			return err
		}
		if _, err := tx.AddMembers(ctx, ir.GovernanceProtocolID, store.RoleKeeper, addressBytes(keepers)); err != nil {
			return err
		}
		if _, err := tx.AddMembers(ctx, ir.GovernanceProtocolID, store.RoleExecutor, accountBytes(executors)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return ir.GlobalConfig{}, err
	}

	e.logger.Info("ledger initialized",
		"home_chain", cfg.HomeChainID,
		"admin", cfg.Admin,
		"keepers", len(keepers),
		"executors", len(executors),
		"rate", p.ConsensusTargetRate,
		"seq", cfg.InitializedSeq,
	)
	return cfg, nil
}

// LoadOperation registers op under hash. Checks, in order: AlreadyLoaded,
// HashMismatch, ProtocolNotRegistered, UnauthorizedExecutor,
// DestinationChainMismatch, TargetAddressNotAllowed (not applied to the
// governance protocol), then structural validity of the operation.
func (e *Engine) LoadOperation(ctx context.Context, caller ir.Account, op ir.Operation, hash common.Hash) (rec ir.OperationRecord, err error) {
	start := time.Now()
	defer func() { err = e.finish(CallLoad, start, err) }()

	e.logger.Debug("call received", "call", CallLoad, "caller", caller, "hash", hash.Hex())

	err = e.store.Update(ctx, func(tx *store.Tx) error {
		cfg, err := requireConfig(ctx, tx)
		if err != nil {
			return err
		}

		if _, err := tx.ReadOperation(ctx, hash); err == nil {
			return errorsmod.Wrapf(ir.ErrAlreadyLoaded, "operation %s", hash.Hex())
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		computed, err := ir.OperationHash(op)
		if err != nil {
			return err
		}
		if computed != hash {
			return errorsmod.Wrapf(ir.ErrHashMismatch, "supplied %s, computed %s", hash.Hex(), computed.Hex())
		}

		protocol, err := readProtocol(ctx, tx, op.ProtocolID)
		if err != nil {
			return err
		}
		if !protocol.IsExecutor(caller) {
			return errorsmod.Wrapf(ir.ErrUnauthorizedExecutor, "%s on %s", caller, protocol.ID)
		}
		if op.DestChainID != cfg.HomeChainID {
			return errorsmod.Wrapf(ir.ErrDestinationChainMismatch, "destination %d, home %d", op.DestChainID, cfg.HomeChainID)
		}
		if !protocol.ID.IsGovernance() && !protocol.AllowsTarget(op.Target()) {
			return errorsmod.Wrapf(ir.ErrTargetAddressNotAllowed, "%s on %s", op.Target(), protocol.ID)
		}

		seq := e.clock.Next()
		inserted, err := tx.InsertOperation(ctx, hash, op, seq)
		if err != nil {
			return err
		}
		if !inserted {
			return errorsmod.Wrapf(ir.ErrAlreadyLoaded, "operation %s", hash.Hex())
		}

		rec = ir.OperationRecord{
			Hash:      hash,
			Operation: op,
			State:     ir.StateLoaded,
			Signers:   []common.Address{},
			LoadedSeq: seq,
		}
		return nil
	})
	if err != nil {
		return ir.OperationRecord{}, err
	}

	e.logger.Info("operation loaded",
		"hash", hash.Hex(),
		"protocol", op.ProtocolID.String(),
		"src_chain", op.SrcChainID,
		"nonce", op.Nonce,
		"seq", rec.LoadedSeq,
	)
	return rec, nil
}

// SignResult reports the state of an operation after a signature batch.
type SignResult struct {
	Hash common.Hash `json:"hash"`
	// Added lists the signers this batch newly attested.
	Added            []common.Address `json:"added"`
	Attested         int              `json:"attested"`
	Valid            int              `json:"valid"`
	Threshold        int              `json:"threshold"`
	ConsensusReached bool             `json:"consensus_reached"`
}

// SignOperation verifies a batch of keeper signatures over hash and merges
// the signers into the attested set. Checks, in order: OperationNotFound,
// AlreadyExecuted, UnauthorizedExecutor, then every signature
// (InvalidSignature, UnauthorizedKeeper). A rejected signature rejects the
// whole batch. Re-submitting an attested signature is a no-op.
func (e *Engine) SignOperation(ctx context.Context, caller ir.Account, hash common.Hash, signatures [][]byte) (res SignResult, err error) {
	start := time.Now()
	defer func() { err = e.finish(CallSign, start, err) }()

	e.logger.Debug("call received", "call", CallSign, "caller", caller, "hash", hash.Hex(), "signatures", len(signatures))

	var (
		protocol ir.ProtocolID
		before   bool
	)
	err = e.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := requireConfig(ctx, tx); err != nil {
			return err
		}
		rec, err := readOperation(ctx, tx, hash)
		if err != nil {
			return err
		}
		if rec.Executed {
			return errorsmod.Wrapf(ir.ErrAlreadyExecuted, "operation %s", hash.Hex())
		}
		cfg, err := readProtocol(ctx, tx, rec.Operation.ProtocolID)
		if err != nil {
			return err
		}
		if !cfg.IsExecutor(caller) {
			return errorsmod.Wrapf(ir.ErrUnauthorizedExecutor, "%s on %s", caller, cfg.ID)
		}
		protocol = cfg.ID
		before = consensus.Evaluate(cfg.Keepers, cfg.ConsensusTargetRate, rec.Signers).ConsensusReached

		tally, err := consensus.Tally(hash, cfg.Keepers, cfg.ConsensusTargetRate, rec.Signers, signatures)
		if err != nil {
			return err
		}
		if len(tally.Added) > 0 {
			if _, err := tx.AddAttestations(ctx, hash, tally.Added, e.clock.Next()); err != nil {
				return err
			}
		}

		res = SignResult{
			Hash:             hash,
			Added:            tally.Added,
			Attested:         len(tally.Attested),
			Valid:            tally.Valid,
			Threshold:        tally.Threshold,
			ConsensusReached: tally.ConsensusReached,
		}
		return nil
	})
	if err != nil {
		return SignResult{}, err
	}

	e.metrics.SignaturesAccepted(protocol.String(), len(res.Added))
	e.logger.Info("signatures accepted",
		"hash", hash.Hex(),
		"added", len(res.Added),
		"valid", res.Valid,
		"threshold", res.Threshold,
	)
	if res.ConsensusReached && !before {
		e.logger.Info("consensus reached", "hash", hash.Hex(), "protocol", protocol.String())
	}
	return res, nil
}

// ExecuteResult describes a completed execution.
type ExecuteResult struct {
	Hash     common.Hash   `json:"hash"`
	Protocol ir.ProtocolID `json:"protocol_id"`
	Seq      int64         `json:"seq"`
	// Mutation and TargetProtocol are set for governance operations.
	Mutation       string         `json:"mutation,omitempty"`
	TargetProtocol *ir.ProtocolID `json:"target_protocol,omitempty"`
}

// ExecuteOperation executes a loaded operation that has reached consensus.
// Checks, in order: OperationNotFound, AlreadyExecuted,
// UnauthorizedExecutor, ConsensusNotReached. The executed flag is flipped
// and the operation dispatched in one transaction: a dispatch error leaves
// the operation executable. Governance operations are applied to the
// protocol named by their payload.
func (e *Engine) ExecuteOperation(ctx context.Context, caller ir.Account, hash common.Hash) (res ExecuteResult, err error) {
	start := time.Now()
	defer func() { err = e.finish(CallExecute, start, err) }()

	e.logger.Debug("call received", "call", CallExecute, "caller", caller, "hash", hash.Hex())
	return e.execute(ctx, caller, hash, nil)
}

// ExecuteGovOperation executes a governance operation against
// targetProtocol. In addition to the ExecuteOperation checks the operation
// must belong to the governance protocol (NotGovernanceOperation) and its
// payload must name targetProtocol (TargetProtocolMismatch).
func (e *Engine) ExecuteGovOperation(ctx context.Context, caller ir.Account, hash common.Hash, targetProtocol ir.ProtocolID) (res ExecuteResult, err error) {
	start := time.Now()
	defer func() { err = e.finish(CallExecuteGov, start, err) }()

	e.logger.Debug("call received", "call", CallExecuteGov, "caller", caller, "hash", hash.Hex(), "target_protocol", targetProtocol.String())
	return e.execute(ctx, caller, hash, &targetProtocol)
}

func (e *Engine) execute(ctx context.Context, caller ir.Account, hash common.Hash, govTarget *ir.ProtocolID) (ExecuteResult, error) {
	var res ExecuteResult
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := requireConfig(ctx, tx); err != nil {
			return err
		}
		rec, err := readOperation(ctx, tx, hash)
		if err != nil {
			return err
		}
		if rec.Executed {
			return errorsmod.Wrapf(ir.ErrAlreadyExecuted, "operation %s", hash.Hex())
		}
		cfg, err := readProtocol(ctx, tx, rec.Operation.ProtocolID)
		if err != nil {
			return err
		}
		if !cfg.IsExecutor(caller) {
			return errorsmod.Wrapf(ir.ErrUnauthorizedExecutor, "%s on %s", caller, cfg.ID)
		}
		if govTarget != nil && !cfg.ID.IsGovernance() {
			return errorsmod.Wrapf(ir.ErrNotGovernanceOperation, "operation %s belongs to %s", hash.Hex(), cfg.ID)
		}
		tally := consensus.Evaluate(cfg.Keepers, cfg.ConsensusTargetRate, rec.Signers)
		if !tally.ConsensusReached {
			return errorsmod.Wrapf(ir.ErrConsensusNotReached, "%d of %d required signatures", tally.Valid, tally.Threshold)
		}

		seq := e.clock.Next()
		swapped, err := tx.MarkExecuted(ctx, hash, seq)
		if err != nil {
			return err
		}
		if !swapped {
			return errorsmod.Wrapf(ir.ErrAlreadyExecuted, "operation %s", hash.Hex())
		}
		res = ExecuteResult{Hash: hash, Protocol: cfg.ID, Seq: seq}

		if cfg.ID.IsGovernance() {
			m, err := e.gov.Dispatch(ctx, tx, rec.Operation, govTarget, seq)
			if err != nil {
				return err
			}
			target := m.Protocol()
			res.Mutation = m.Opcode().String()
			res.TargetProtocol = &target
			return nil
		}

		addr := rec.Operation.Target()
		t, ok := e.targets.lookup(addr)
		if !ok {
			return errorsmod.Wrapf(ir.ErrTargetNotFound, "%s", addr)
		}
		err = t.Invoke(ctx, Call{
			OperationHash: hash,
			Protocol:      cfg.ID,
			Target:        addr,
			Selector:      rec.Operation.Selector,
			Params:        rec.Operation.Params,
			SrcChainID:    rec.Operation.SrcChainID,
			Seq:           seq,
		})
		if err != nil {
			return fmt.Errorf("target %s: %w", addr, err)
		}
		return nil
	})
	if err != nil {
		return ExecuteResult{}, err
	}

	e.metrics.OperationExecuted(res.Protocol.String())
	e.logger.Info("operation executed",
		"hash", hash.Hex(),
		"protocol", res.Protocol.String(),
		"mutation", res.Mutation,
		"seq", res.Seq,
	)
	return res, nil
}

// requireConfig returns the global configuration or ir.ErrNotInitialized.
func requireConfig(ctx context.Context, tx *store.Tx) (ir.GlobalConfig, error) {
	cfg, err := tx.ReadConfig(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.GlobalConfig{}, errorsmod.Wrap(ir.ErrNotInitialized, "ledger has no configuration")
	}
	return cfg, err
}

func readProtocol(ctx context.Context, tx *store.Tx, id ir.ProtocolID) (ir.ProtocolConfig, error) {
	cfg, err := tx.ReadProtocol(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ProtocolConfig{}, errorsmod.Wrapf(ir.ErrProtocolNotRegistered, "protocol %s", id)
	}
	return cfg, err
}

func readOperation(ctx context.Context, tx *store.Tx, hash common.Hash) (ir.OperationRecord, error) {
	rec, err := tx.ReadOperation(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.OperationRecord{}, errorsmod.Wrapf(ir.ErrOperationNotFound, "operation %s", hash.Hex())
	}
	return rec, err
}

func addressBytes(addrs []common.Address) [][]byte {
	out := make([][]byte, len(addrs))
	for i, a := range addrs {
		out[i] = a.Bytes()
	}
	return out
}

func accountBytes(accounts []ir.Account) [][]byte {
	out := make([][]byte, len(accounts))
	for i, a := range accounts {
		out[i] = a.Bytes()
	}
	return out
}

func dedupAccounts(accounts []ir.Account) []ir.Account {
	seen := make(map[ir.Account]struct{}, len(accounts))
	out := make([]ir.Account, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
