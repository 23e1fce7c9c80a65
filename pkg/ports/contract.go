package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/docket/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newSnap := func(id string) *domain.Snapshot {
		return &domain.Snapshot{
			ID: id,
			Stores: map[string]json.RawMessage{
				"brep": json.RawMessage(`{"bodies":[{"name":"Body 1"}]}`),
				"view": json.RawMessage(`{"zoom":2}`),
			},
			TakenAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnap(sessionID)

		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.ID, loaded.ID)
		assert.Equal(t, []string{"brep", "view"}, loaded.Keys())
		// Encodings may be reformatted by the backend, so compare as JSON.
		assert.JSONEq(t, string(snap.Stores["brep"]), string(loaded.Stores["brep"]))
		assert.JSONEq(t, string(snap.Stores["view"]), string(loaded.Stores["view"]))
		assert.True(t, snap.TakenAt.Equal(loaded.TakenAt), "TakenAt should survive a round trip")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		snap := newSnap(sessionID)
		snap.Stores["view"] = json.RawMessage(`{"zoom":5}`)
		require.NoError(t, store.Save(ctx, sessionID, snap))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"zoom":5}`, string(loaded.Stores["view"]))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newSnap(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, newSnap(id1)))
		require.NoError(t, store.Save(ctx, id2, newSnap(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
