package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
)

// InsertOperation records a newly loaded operation under its hash.
// Uses ON CONFLICT(hash) DO NOTHING: returns inserted=false if a record for
// the hash already exists, which makes loading an atomic create-if-absent.
//
// The operation is persisted as its canonical encoding.
func (t *Tx) InsertOperation(ctx context.Context, hash common.Hash, op ir.Operation, seq int64) (inserted bool, err error) {
	encoded, err := ir.MarshalCanonical(op)
	if err != nil {
		return false, fmt.Errorf("insert operation: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO operations (hash, protocol_id, encoded, executed, loaded_seq)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash[:], op.ProtocolID[:], encoded, seq)
	if err != nil {
		return false, fmt.Errorf("insert operation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert operation: rows affected: %w", err)
	}
	return rows > 0, nil
}

// ReadOperation returns the record for hash, including attested signers.
// Returns sql.ErrNoRows if no operation was loaded under hash.
func (t *Tx) ReadOperation(ctx context.Context, hash common.Hash) (ir.OperationRecord, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT hash, encoded, executed, loaded_seq, executed_seq
		FROM operations
		WHERE hash = ?
	`, hash[:])

	rec, err := scanOperation(row)
	if err != nil {
		return ir.OperationRecord{}, err
	}

	rec.Signers, err = t.ReadAttestations(ctx, hash)
	if err != nil {
		return ir.OperationRecord{}, err
	}
	return rec, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (ir.OperationRecord, error) {
	var (
		rec         ir.OperationRecord
		rawHash     []byte
		encoded     []byte
		executed    bool
		executedSeq sql.NullInt64
	)
	if err := row.Scan(&rawHash, &encoded, &executed, &rec.LoadedSeq, &executedSeq); err != nil {
		return ir.OperationRecord{}, err
	}

	op, err := ir.UnmarshalCanonical(encoded)
	if err != nil {
		return ir.OperationRecord{}, fmt.Errorf("decode operation %x: %w", rawHash, err)
	}

	rec.Hash = common.BytesToHash(rawHash)
	rec.Operation = op
	rec.Executed = executed
	rec.State = ir.StateLoaded
	if executed {
		rec.State = ir.StateExecuted
		rec.ExecutedSeq = executedSeq.Int64
	}
	rec.Signers = []common.Address{}
	return rec, nil
}

// AddAttestations merges signers into the operation's attested set.
// Already-attested signers are ignored. Returns the number added.
func (t *Tx) AddAttestations(ctx context.Context, hash common.Hash, signers []common.Address, seq int64) (int, error) {
	added := 0
	for _, s := range signers {
		result, err := t.tx.ExecContext(ctx, `
			INSERT INTO attestations (op_hash, signer, seq)
			VALUES (?, ?, ?)
			ON CONFLICT(op_hash, signer) DO NOTHING
		`, hash[:], s[:], seq)
		if err != nil {
			return added, fmt.Errorf("add attestation: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return added, fmt.Errorf("add attestation: rows affected: %w", err)
		}
		added += int(rows)
	}
	return added, nil
}

// ReadAttestations returns the attested signers of an operation in
// ascending byte order.
func (t *Tx) ReadAttestations(ctx context.Context, hash common.Hash) ([]common.Address, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT signer FROM attestations
		WHERE op_hash = ?
		ORDER BY signer ASC
	`, hash[:])
	if err != nil {
		return nil, fmt.Errorf("read attestations: %w", err)
	}
	defer rows.Close()

	signers := []common.Address{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan attestation: %w", err)
		}
		signers = append(signers, common.BytesToAddress(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attestations: %w", err)
	}
	return signers, nil
}

// Attestation is one signer's attestation with the sequence it was recorded at.
type Attestation struct {
	Signer common.Address `json:"signer"`
	Seq    int64          `json:"seq"`
}

// ReadAttestationLog returns attestations ordered by seq, then signer.
// Used for lifecycle traces.
func (t *Tx) ReadAttestationLog(ctx context.Context, hash common.Hash) ([]Attestation, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT signer, seq FROM attestations
		WHERE op_hash = ?
		ORDER BY seq ASC, signer ASC
	`, hash[:])
	if err != nil {
		return nil, fmt.Errorf("read attestation log: %w", err)
	}
	defer rows.Close()

	log := []Attestation{}
	for rows.Next() {
		var (
			raw []byte
			a   Attestation
		)
		if err := rows.Scan(&raw, &a.Seq); err != nil {
			return nil, fmt.Errorf("scan attestation: %w", err)
		}
		a.Signer = common.BytesToAddress(raw)
		log = append(log, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attestation log: %w", err)
	}
	return log, nil
}

// MarkExecuted flips the executed flag with a compare-and-swap.
// Returns swapped=false if the operation was already executed; the caller
// must treat that as a lost race and abort.
func (t *Tx) MarkExecuted(ctx context.Context, hash common.Hash, seq int64) (swapped bool, err error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE operations SET executed = 1, executed_seq = ?
		WHERE hash = ? AND executed = 0
	`, seq, hash[:])
	if err != nil {
		return false, fmt.Errorf("mark executed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark executed: rows affected: %w", err)
	}
	return rows == 1, nil
}

// ListOperations returns operations of a protocol ordered by load sequence.
// A zero protocol id lists every protocol.
func (t *Tx) ListOperations(ctx context.Context, protocol ir.ProtocolID) ([]ir.OperationRecord, error) {
	query := `
		SELECT hash, encoded, executed, loaded_seq, executed_seq
		FROM operations
	`
	var args []any
	if protocol != (ir.ProtocolID{}) {
		query += ` WHERE protocol_id = ?`
		args = append(args, protocol[:])
	}
	query += ` ORDER BY loaded_seq ASC, hash ASC`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}

	records := []ir.OperationRecord{}
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}

	for i := range records {
		records[i].Signers, err = t.ReadAttestations(ctx, records[i].Hash)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}
