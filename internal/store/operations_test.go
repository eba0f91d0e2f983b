package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spotter/internal/ir"
)

func TestInsertOperation_CreateIfAbsent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	protocol := createTestProtocol(t, s, "onefunc")
	op := createTestOperation(protocol, 1)
	hash := ir.MustOperationHash(op)

	var inserted bool
	update(t, s, func(ctx context.Context, tx *Tx) (err error) {
		inserted, err = tx.InsertOperation(ctx, hash, op, 2)
		return err
	})
	assert.True(t, inserted)

	update(t, s, func(ctx context.Context, tx *Tx) (err error) {
		inserted, err = tx.InsertOperation(ctx, hash, op, 3)
		return err
	})
	assert.False(t, inserted, "second load of the same hash must not insert")

	err := s.View(ctx, func(tx *Tx) error {
		rec, err := tx.ReadOperation(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, hash, rec.Hash)
		assert.Equal(t, ir.StateLoaded, rec.State)
		assert.False(t, rec.Executed)
		assert.Equal(t, int64(2), rec.LoadedSeq)
		assert.Empty(t, rec.Signers)
		assert.Equal(t, hash, ir.MustOperationHash(rec.Operation), "stored encoding decodes to the same operation")
		return nil
	})
	require.NoError(t, err)
}

func TestReadOperation_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.View(ctx, func(tx *Tx) error {
		_, err := tx.ReadOperation(ctx, common.Hash{1})
		return err
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAttestations_SetSemantics(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	protocol := createTestProtocol(t, s, "onefunc")
	op := createTestOperation(protocol, 1)
	hash := ir.MustOperationHash(op)
	a := common.HexToAddress("0x0b")
	b := common.HexToAddress("0x0a")

	update(t, s, func(ctx context.Context, tx *Tx) error {
		_, err := tx.InsertOperation(ctx, hash, op, 1)
		return err
	})

	update(t, s, func(ctx context.Context, tx *Tx) error {
		added, err := tx.AddAttestations(ctx, hash, []common.Address{a}, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		added, err = tx.AddAttestations(ctx, hash, []common.Address{a, b}, 3)
		require.NoError(t, err)
		assert.Equal(t, 1, added, "already-attested signer is ignored")
		return nil
	})

	err := s.View(ctx, func(tx *Tx) error {
		signers, err := tx.ReadAttestations(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, []common.Address{b, a}, signers)

		log, err := tx.ReadAttestationLog(ctx, hash)
		require.NoError(t, err)
		require.Len(t, log, 2)
		assert.Equal(t, Attestation{Signer: a, Seq: 2}, log[0], "first attestation keeps its seq")
		assert.Equal(t, Attestation{Signer: b, Seq: 3}, log[1])
		return nil
	})
	require.NoError(t, err)
}

func TestMarkExecuted_CompareAndSwap(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	protocol := createTestProtocol(t, s, "onefunc")
	op := createTestOperation(protocol, 1)
	hash := ir.MustOperationHash(op)

	update(t, s, func(ctx context.Context, tx *Tx) error {
		_, err := tx.InsertOperation(ctx, hash, op, 1)
		return err
	})

	var swapped bool
	update(t, s, func(ctx context.Context, tx *Tx) (err error) {
		swapped, err = tx.MarkExecuted(ctx, hash, 5)
		return err
	})
	assert.True(t, swapped)

	update(t, s, func(ctx context.Context, tx *Tx) (err error) {
		swapped, err = tx.MarkExecuted(ctx, hash, 6)
		return err
	})
	assert.False(t, swapped, "executed flag is set once")

	err := s.View(ctx, func(tx *Tx) error {
		rec, err := tx.ReadOperation(ctx, hash)
		require.NoError(t, err)
		assert.True(t, rec.Executed)
		assert.Equal(t, ir.StateExecuted, rec.State)
		assert.Equal(t, int64(5), rec.ExecutedSeq)
		return nil
	})
	require.NoError(t, err)
}

func TestListOperations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	one := createTestProtocol(t, s, "onefunc")
	two := createTestProtocol(t, s, "twofunc")

	update(t, s, func(ctx context.Context, tx *Tx) error {
		for i, op := range []ir.Operation{
			createTestOperation(one, 1),
			createTestOperation(two, 1),
			createTestOperation(one, 2),
		} {
			if _, err := tx.InsertOperation(ctx, ir.MustOperationHash(op), op, int64(i+1)); err != nil {
				return err
			}
		}
		return nil
	})

	err := s.View(ctx, func(tx *Tx) error {
		all, err := tx.ListOperations(ctx, ir.ProtocolID{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		ones, err := tx.ListOperations(ctx, one)
		require.NoError(t, err)
		require.Len(t, ones, 2)
		assert.Equal(t, uint64(1), ones[0].Operation.Nonce)
		assert.Equal(t, uint64(2), ones[1].Operation.Nonce)
		return nil
	})
	require.NoError(t, err)
}
