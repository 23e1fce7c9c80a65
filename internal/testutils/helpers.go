package testutils

import (
	"encoding/json"
	"path/filepath"
	"testing"

	loamadapter "github.com/aretw0/docket/pkg/adapters/loam"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/stretchr/testify/require"
)

// SetupTestVault creates a temporary directory and opens a Loam snapshot store in it.
// It returns the absolute path to the temp dir and the store.
// It fails the test immediately on error.
func SetupTestVault(t *testing.T, opts ...loamadapter.Option) (string, *loamadapter.Store) {
	t.Helper()

	// Loam sometimes prefers absolute paths, though t.TempDir usually returns one.
	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	store, err := loamadapter.Open(absPath, opts...)
	require.NoError(t, err, "Failed to open loam vault")

	return absPath, store
}

// Snapshot builds a snapshot from raw JSON per store key.
func Snapshot(id string, stores map[string]string) *domain.Snapshot {
	snap := &domain.Snapshot{ID: id, Stores: make(map[string]json.RawMessage, len(stores))}
	for k, v := range stores {
		snap.Stores[k] = json.RawMessage(v)
	}
	return snap
}
