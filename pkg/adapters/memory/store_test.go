package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/docket/pkg/adapters/memory"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSnapshotStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	snap := &domain.Snapshot{ID: "s", Stores: map[string]json.RawMessage{"a": json.RawMessage(`1`)}}

	require.NoError(t, store.Save(ctx, "s", snap))
	snap.Stores["a"][0] = '9'
	snap.Stores["b"] = json.RawMessage(`2`)

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, loaded.Keys())
	assert.Equal(t, `1`, string(loaded.Stores["a"]))

	loaded.Stores["a"] = json.RawMessage(`3`)
	again, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, `1`, string(again.Stores["a"]))
}
