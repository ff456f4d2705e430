package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"knowledge-sync-service/internal/store"
)

// Journal is the append-only record of entity mutations, the source of
// truth for "what changed since when". Append is the only write path and
// is invoked from inside the sync engine only.
type Journal struct {
	store store.Store

	mu     sync.Mutex
	lastTS int64
}

func NewJournal(s store.Store) *Journal {
	return &Journal{store: s}
}

// now returns a strictly increasing unix-nanosecond timestamp. Checkpoints
// compare with ">", so two entries must never share a timestamp within one
// process even if the wall clock stalls or steps backwards.
func (j *Journal) now() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	ts := time.Now().UnixNano()
	if ts <= j.lastTS {
		ts = j.lastTS + 1
	}
	j.lastTS = ts
	return ts
}

// Append stamps and journals one entry on the condition that the entity's
// version still equals expectedVersion. Returns store.ErrVersionRace when a
// concurrent push advanced the entity first.
func (j *Journal) Append(ctx context.Context, e *store.ChangeEntry, expectedVersion int64) error {
	e.ID = uuid.New().String()
	e.ServerTimestamp = j.now()
	return j.store.AppendChange(ctx, e, expectedVersion)
}

// Head returns the most recent entry for an entity, or nil when the entity
// has never been journaled.
func (j *Journal) Head(ctx context.Context, ownerID string, entityType store.EntityType, entityID string) (*store.ChangeEntry, error) {
	return j.store.LatestChange(ctx, ownerID, entityType, entityID)
}

// Since returns entries with server_timestamp strictly greater than the
// checkpoint, oldest first, ties broken by insertion order. excludeDeviceID
// filters out a device's own entries so pulls never echo. The sequence is
// restartable: callers may resume from any checkpoint they were handed.
func (j *Journal) Since(ctx context.Context, ownerID string, checkpoint int64, excludeDeviceID string, limit int) ([]*store.ChangeEntry, error) {
	return j.store.ChangesSince(ctx, ownerID, checkpoint, excludeDeviceID, limit)
}
