package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// update runs fn in a write transaction and fails the test on error.
func update(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.Update(ctx, func(tx *Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
}

// createTestProtocol registers a protocol with a single target.
func createTestProtocol(t *testing.T, s *Store, name string) ir.ProtocolID {
	t.Helper()
	id := ir.MustProtocolID(name)
	update(t, s, func(ctx context.Context, tx *Tx) error {
		if _, err := tx.UpsertProtocol(ctx, id, 10000, 0, 1); err != nil {
			return err
		}
		_, err := tx.AddMembers(ctx, id, RoleTarget, [][]byte{{1, 54, 22, 87, 84, 85, 0, 0, 71}})
		return err
	})
	return id
}

// createTestOperation builds an operation for protocol with a given nonce.
func createTestOperation(protocol ir.ProtocolID, nonce uint64) ir.Operation {
	return ir.Operation{
		ProtocolID:     protocol,
		SrcChainID:     33133,
		SrcBlockNumber: 1,
		SrcOpTxID:      common.HexToHash("0xce25f58a7fd8625deadc00a59b67c530c7d92acec1e5753c588269ade6ebf99f"),
		Nonce:          nonce,
		DestChainID:    111111111,
		ProtocolAddr:   []byte{1, 54, 22, 87, 84, 85, 0, 0, 71},
		Selector:       ir.NameSelector("increment"),
		Params:         []byte{1, 2, 3},
	}
}
