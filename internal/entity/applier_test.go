package entity_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-sync-service/internal/config"
	"knowledge-sync-service/internal/database"
	"knowledge-sync-service/internal/entity"
	"knowledge-sync-service/internal/store"
)

func TestSnapshotApplier(t *testing.T) {
	db, err := database.Open(config.StorageConfig{
		Type:     "sqlite",
		FilePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	s, err := store.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	applier := entity.NewSnapshotApplier(s)
	ctx := context.Background()

	require.NoError(t, applier.Apply(ctx, "alice", store.EntityKnowledge, "k1", store.OpCreate, []byte(`{"v":1}`), 1))
	require.NoError(t, applier.Apply(ctx, "alice", store.EntityKnowledge, "k1", store.OpUpdate, []byte(`{"v":2}`), 2))

	snap, err := s.GetSnapshot(ctx, "alice", store.EntityKnowledge, "k1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"v":2}`, string(snap.Payload))
	assert.Equal(t, int64(2), snap.Version)

	// Delete is soft: the row survives with the deleted flag and the
	// version that removed it.
	require.NoError(t, applier.Apply(ctx, "alice", store.EntityKnowledge, "k1", store.OpDelete, nil, 3))
	snap, err = s.GetSnapshot(ctx, "alice", store.EntityKnowledge, "k1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Deleted)
	assert.Equal(t, int64(3), snap.Version)
}
