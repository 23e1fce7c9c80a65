package ports_test

import (
	"testing"

	"github.com/aretw0/docket/pkg/adapters/file"
	"github.com/aretw0/docket/pkg/adapters/memory"
	"github.com/aretw0/docket/pkg/ports"
)

// The contract must accept both the in-process and the on-disk stores.
func TestSnapshotStore_Contract(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		ports.RunSnapshotStoreContract(t, memory.NewStore())
	})
	t.Run("file", func(t *testing.T) {
		ports.RunSnapshotStoreContract(t, file.New(t.TempDir()))
	})
}
