package governance

import (
	"context"
	"log/slog"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
)

// Registry is the protocol registry surface a mutation needs.
// *store.Tx implements it.
type Registry interface {
	UpsertProtocol(ctx context.Context, id ir.ProtocolID, rate, fee uint64, seq int64) (bool, error)
	ProtocolExists(ctx context.Context, id ir.ProtocolID) (bool, error)
	SetConsensusRate(ctx context.Context, id ir.ProtocolID, rate uint64) error
	SetProtocolFee(ctx context.Context, id ir.ProtocolID, fee uint64) error
	AddMembers(ctx context.Context, id ir.ProtocolID, role store.Role, members [][]byte) (int, error)
	RemoveMembers(ctx context.Context, id ir.ProtocolID, role store.Role, members [][]byte) (int, error)
	ReadMembers(ctx context.Context, id ir.ProtocolID, role store.Role) ([][]byte, error)
}

var _ Registry = (*store.Tx)(nil)

// Dispatcher applies governance mutations to the protocol registry.
type Dispatcher struct {
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger uses slog.Default().
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Dispatch decodes a governance operation and applies it.
// If target is non-nil the payload's protocol id must equal it
// (ir.ErrTargetProtocolMismatch). Returns the applied mutation.
func (d *Dispatcher) Dispatch(ctx context.Context, reg Registry, op ir.Operation, target *ir.ProtocolID, seq int64) (Mutation, error) {
	m, err := Decode(op)
	if err != nil {
		return nil, err
	}
	if target != nil && m.Protocol() != *target {
		return nil, errorsmod.Wrapf(ir.ErrTargetProtocolMismatch, "payload targets %s, call targets %s", m.Protocol(), *target)
	}
	if err := d.Apply(ctx, reg, m, seq); err != nil {
		return nil, err
	}
	return m, nil
}

// Apply runs a mutation against the registry. Callers own the transaction;
// an error leaves it to be rolled back.
func (d *Dispatcher) Apply(ctx context.Context, reg Registry, m Mutation, seq int64) error {
	id := m.Protocol()

	if rp, ok := m.(RegisterProtocol); ok {
		return d.register(ctx, reg, rp, seq)
	}

	exists, err := reg.ProtocolExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return errorsmod.Wrapf(ir.ErrProtocolNotRegistered, "%s: protocol %s", m.Opcode(), id)
	}

	switch m := m.(type) {
	case SetConsensusRate:
		if m.Rate > ir.MaxConsensusTargetRate {
			return errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "rate %d exceeds %d", m.Rate, ir.MaxConsensusTargetRate)
		}
		if err := reg.SetConsensusRate(ctx, id, m.Rate); err != nil {
			return err
		}

	case SetProtocolFee:
		if err := reg.SetProtocolFee(ctx, id, m.Fee); err != nil {
			return err
		}

	case AddKeepers:
		if _, err := reg.AddMembers(ctx, id, store.RoleKeeper, addressBytes(m.Keepers)); err != nil {
			return err
		}

	case RemoveKeepers:
		if err := d.guardLockout(ctx, reg, id, store.RoleKeeper, addressBytes(m.Keepers)); err != nil {
			return err
		}
		if _, err := reg.RemoveMembers(ctx, id, store.RoleKeeper, addressBytes(m.Keepers)); err != nil {
			return err
		}

	case AddMember:
		if _, err := reg.AddMembers(ctx, id, m.Role, [][]byte{m.Member.Bytes()}); err != nil {
			return err
		}

	case RemoveMember:
		if m.Role == store.RoleExecutor {
			if err := d.guardLockout(ctx, reg, id, m.Role, [][]byte{m.Member.Bytes()}); err != nil {
				return err
			}
		}
		if _, err := reg.RemoveMembers(ctx, id, m.Role, [][]byte{m.Member.Bytes()}); err != nil {
			return err
		}

	default:
		return errorsmod.Wrapf(ir.ErrUnknownGovernanceOpcode, "unsupported mutation %T", m)
	}

	d.logger.Info("governance mutation applied",
		"opcode", m.Opcode().String(),
		"protocol", id.String(),
		"seq", seq,
	)
	return nil
}

func (d *Dispatcher) register(ctx context.Context, reg Registry, m RegisterProtocol, seq int64) error {
	if m.ID.IsGovernance() {
		return errorsmod.Wrapf(ir.ErrProtocolReserved, "cannot register %s", m.ID)
	}
	if m.Rate > ir.MaxConsensusTargetRate {
		return errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "rate %d exceeds %d", m.Rate, ir.MaxConsensusTargetRate)
	}
	created, err := reg.UpsertProtocol(ctx, m.ID, m.Rate, m.Fee, seq)
	if err != nil {
		return err
	}
	if _, err := reg.AddMembers(ctx, m.ID, store.RoleKeeper, addressBytes(m.Keepers)); err != nil {
		return err
	}
	d.logger.Info("protocol registered",
		"protocol", m.ID.String(),
		"created", created,
		"keepers", len(m.Keepers),
		"rate", m.Rate,
		"seq", seq,
	)
	return nil
}

// guardLockout rejects removals that would leave the governance protocol
// without any member of role.
func (d *Dispatcher) guardLockout(ctx context.Context, reg Registry, id ir.ProtocolID, role store.Role, removing [][]byte) error {
	if !id.IsGovernance() {
		return nil
	}
	current, err := reg.ReadMembers(ctx, id, role)
	if err != nil {
		return err
	}
	gone := make(map[string]struct{}, len(removing))
	for _, r := range removing {
		gone[string(r)] = struct{}{}
	}
	for _, c := range current {
		if _, ok := gone[string(c)]; !ok {
			return nil
		}
	}
	return errorsmod.Wrapf(ir.ErrGovernanceLockout, "removing every %s of %s", role, id)
}

func addressBytes(addrs []common.Address) [][]byte {
	out := make([][]byte, len(addrs))
	for i, a := range addrs {
		out[i] = a.Bytes()
	}
	return out
}
