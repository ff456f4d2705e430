// Package entity bridges the sync engine to the service that owns
// knowledge/category/tag semantics. The sync core only replays mutations;
// it never interprets entity payloads.
package entity

import (
	"context"
	"encoding/json"
	"time"

	"knowledge-sync-service/internal/store"
)

// Applier performs the actual create/update/delete for an entity. The real
// knowledge service implements this; SnapshotApplier is the built-in
// implementation that materializes current state into the snapshot table so
// the service runs standalone.
type Applier interface {
	Apply(ctx context.Context, ownerID string, entityType store.EntityType, entityID string, op store.Operation, payload json.RawMessage, version int64) error
}

// SnapshotApplier keeps the latest payload per entity in the store's
// snapshot table. Deletes are soft so the entity's version history stays
// addressable.
type SnapshotApplier struct {
	store store.Store
}

func NewSnapshotApplier(s store.Store) *SnapshotApplier {
	return &SnapshotApplier{store: s}
}

func (a *SnapshotApplier) Apply(ctx context.Context, ownerID string, entityType store.EntityType, entityID string, op store.Operation, payload json.RawMessage, version int64) error {
	if op == store.OpDelete {
		return a.store.DeleteSnapshot(ctx, ownerID, entityType, entityID, version)
	}
	return a.store.UpsertSnapshot(ctx, &store.EntitySnapshot{
		OwnerID:    ownerID,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		Version:    version,
		Deleted:    false,
		UpdatedAt:  time.Now(),
	})
}
