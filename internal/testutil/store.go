package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/spotter/internal/store"
)

// OpenStore opens a fresh SQLite ledger in t's temp dir and closes it at
// cleanup.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
