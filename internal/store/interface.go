package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrVersionRace is returned by AppendChange when the conditional insert
// finds the entity's version already advanced past the expected value.
// The caller re-reads the journal head and routes the change to conflict
// detection.
var ErrVersionRace = errors.New("entity version advanced concurrently")

// ConflictFilter narrows ListConflicts. Zero values mean "any".
type ConflictFilter struct {
	DeviceID string
	Status   ConflictStatus
}

type Store interface {
	// Devices
	CreateDevice(ctx context.Context, d *Device) error
	GetDevice(ctx context.Context, ownerID, deviceID string) (*Device, error)
	ListDevices(ctx context.Context, ownerID string) ([]*Device, error)
	UpdateDeviceInfo(ctx context.Context, ownerID, deviceID, name string, dtype DeviceType) error
	DeactivateDevice(ctx context.Context, ownerID, deviceID string) (bool, error)
	UpdateDeviceLastSync(ctx context.Context, ownerID, deviceID string, lastSync int64) error

	// Change journal
	AppendChange(ctx context.Context, e *ChangeEntry, expectedVersion int64) error
	LatestChange(ctx context.Context, ownerID string, entityType EntityType, entityID string) (*ChangeEntry, error)
	ChangesSince(ctx context.Context, ownerID string, since int64, excludeDeviceID string, limit int) ([]*ChangeEntry, error)
	PruneChangesBefore(ctx context.Context, cutoff int64) (int64, error)

	// Conflicts
	CreateConflict(ctx context.Context, c *Conflict) error
	GetConflict(ctx context.Context, ownerID, id string) (*Conflict, error)
	GetUnresolvedConflict(ctx context.Context, ownerID string, entityType EntityType, entityID string) (*Conflict, error)
	UpdateConflictSides(ctx context.Context, c *Conflict) error
	ListConflicts(ctx context.Context, ownerID string, filter ConflictFilter) ([]*Conflict, error)
	MarkConflictResolved(ctx context.Context, ownerID, id string, resolution Resolution, resolvedAt time.Time) (bool, error)

	// Entity snapshots
	UpsertSnapshot(ctx context.Context, s *EntitySnapshot) error
	DeleteSnapshot(ctx context.Context, ownerID string, entityType EntityType, entityID string, version int64) error
	GetSnapshot(ctx context.Context, ownerID string, entityType EntityType, entityID string) (*EntitySnapshot, error)

	Close() error
}

// PayloadEqual reports whether two opaque payloads are semantically equal
// JSON. Used by conflict detection to treat idempotent resubmissions of an
// already-applied change as no-conflict. Falls back to byte equality when
// either side is not valid JSON.
func PayloadEqual(a, b json.RawMessage) bool {
	var av, bv interface{}
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return string(a) == string(b)
	}
	ab, err1 := json.Marshal(av)
	bb, err2 := json.Marshal(bv)
	if err1 != nil || err2 != nil {
		return string(a) == string(b)
	}
	return string(ab) == string(bb)
}
