package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
)

// Role names a member set of a protocol.
type Role string

const (
	RoleKeeper   Role = "keeper"
	RoleExecutor Role = "executor"
	RoleProposer Role = "proposer"
	RoleTarget   Role = "target"
)

// Roles lists every member role in display order.
var Roles = []Role{RoleKeeper, RoleExecutor, RoleProposer, RoleTarget}

// UpsertProtocol creates a protocol row, or updates the rate and fee of an
// existing one. Member sets are untouched. Returns created=true if the row
// did not exist.
func (t *Tx) UpsertProtocol(ctx context.Context, id ir.ProtocolID, rate, fee uint64, seq int64) (created bool, err error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO protocols (id, consensus_target_rate, protocol_fee, created_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id[:], int64(rate), int64(fee), seq)
	if err != nil {
		return false, fmt.Errorf("upsert protocol: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert protocol: rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE protocols SET consensus_target_rate = ?, protocol_fee = ?
		WHERE id = ?
	`, int64(rate), int64(fee), id[:])
	if err != nil {
		return false, fmt.Errorf("upsert protocol: update: %w", err)
	}
	return false, nil
}

// ProtocolExists reports whether a protocol row exists.
func (t *Tx) ProtocolExists(ctx context.Context, id ir.ProtocolID) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM protocols WHERE id = ?`, id[:]).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("protocol exists: %w", err)
	}
	return n > 0, nil
}

// SetConsensusRate updates a protocol's consensus target rate.
// Returns sql.ErrNoRows if the protocol does not exist.
func (t *Tx) SetConsensusRate(ctx context.Context, id ir.ProtocolID, rate uint64) error {
	return t.updateProtocolColumn(ctx, "consensus_target_rate", id, rate)
}

// SetProtocolFee updates a protocol's fee.
// Returns sql.ErrNoRows if the protocol does not exist.
func (t *Tx) SetProtocolFee(ctx context.Context, id ir.ProtocolID, fee uint64) error {
	return t.updateProtocolColumn(ctx, "protocol_fee", id, fee)
}

func (t *Tx) updateProtocolColumn(ctx context.Context, column string, id ir.ProtocolID, value uint64) error {
	result, err := t.tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE protocols SET %s = ? WHERE id = ?`, column),
		int64(value), id[:],
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s: rows affected: %w", column, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddMembers inserts members into a role set. Existing members are ignored.
// Returns the number of members actually added.
func (t *Tx) AddMembers(ctx context.Context, id ir.ProtocolID, role Role, members [][]byte) (int, error) {
	added := 0
	for _, m := range members {
		result, err := t.tx.ExecContext(ctx, `
			INSERT INTO protocol_members (protocol_id, role, member)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, id[:], string(role), m)
		if err != nil {
			return added, fmt.Errorf("add %s: %w", role, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return added, fmt.Errorf("add %s: rows affected: %w", role, err)
		}
		added += int(rows)
	}
	return added, nil
}

// RemoveMembers deletes members from a role set. Non-members are ignored.
// Returns the number of members actually removed.
func (t *Tx) RemoveMembers(ctx context.Context, id ir.ProtocolID, role Role, members [][]byte) (int, error) {
	removed := 0
	for _, m := range members {
		result, err := t.tx.ExecContext(ctx, `
			DELETE FROM protocol_members
			WHERE protocol_id = ? AND role = ? AND member = ?
		`, id[:], string(role), m)
		if err != nil {
			return removed, fmt.Errorf("remove %s: %w", role, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("remove %s: rows affected: %w", role, err)
		}
		removed += int(rows)
	}
	return removed, nil
}

// ReadMembers returns a role set in ascending byte order.
func (t *Tx) ReadMembers(ctx context.Context, id ir.ProtocolID, role Role) ([][]byte, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT member FROM protocol_members
		WHERE protocol_id = ? AND role = ?
		ORDER BY member ASC
	`, id[:], string(role))
	if err != nil {
		return nil, fmt.Errorf("read %s set: %w", role, err)
	}
	defer rows.Close()

	members := [][]byte{}
	for rows.Next() {
		var m []byte
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan %s: %w", role, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s set: %w", role, err)
	}
	return members, nil
}

// ReadProtocol returns a protocol with all member sets populated.
// Returns sql.ErrNoRows if the protocol does not exist.
func (t *Tx) ReadProtocol(ctx context.Context, id ir.ProtocolID) (ir.ProtocolConfig, error) {
	var rate, fee int64
	cfg := ir.ProtocolConfig{ID: id}
	err := t.tx.QueryRowContext(ctx, `
		SELECT consensus_target_rate, protocol_fee, created_seq
		FROM protocols
		WHERE id = ?
	`, id[:]).Scan(&rate, &fee, &cfg.CreatedSeq)
	if err != nil {
		return ir.ProtocolConfig{}, err
	}
	cfg.ConsensusTargetRate = uint64(rate)
	cfg.ProtocolFee = uint64(fee)

	keepers, err := t.ReadMembers(ctx, id, RoleKeeper)
	if err != nil {
		return ir.ProtocolConfig{}, err
	}
	cfg.Keepers = make([]common.Address, len(keepers))
	for i, k := range keepers {
		cfg.Keepers[i] = common.BytesToAddress(k)
	}

	for _, set := range []struct {
		role Role
		dst  *[]ir.Account
	}{
		{RoleExecutor, &cfg.Executors},
		{RoleProposer, &cfg.Proposers},
		{RoleTarget, &cfg.AllowedTargets},
	} {
		members, err := t.ReadMembers(ctx, id, set.role)
		if err != nil {
			return ir.ProtocolConfig{}, err
		}
		accounts := make([]ir.Account, len(members))
		for i, m := range members {
			accounts[i] = ir.AccountFromBytes(m)
		}
		*set.dst = accounts
	}

	return cfg, nil
}

// ListProtocols returns every protocol id ordered by creation.
func (t *Tx) ListProtocols(ctx context.Context) ([]ir.ProtocolID, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id FROM protocols
		ORDER BY created_seq ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	defer rows.Close()

	ids := []ir.ProtocolID{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan protocol: %w", err)
		}
		var id ir.ProtocolID
		copy(id[:], raw)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate protocols: %w", err)
	}
	return ids, nil
}
