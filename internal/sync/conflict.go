package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knowledge-sync-service/internal/entity"
	"knowledge-sync-service/internal/logger"
	"knowledge-sync-service/internal/store"
)

// OriginResolution is the origin_device_id recorded on change entries
// produced by conflict resolution. The entry is attributed to the resolving
// action, not to either competing device.
const OriginResolution = "resolution"

// Decision is the outcome of conflict detection for one incoming change.
type Decision int

const (
	// DecisionAccept journals the change at the next version.
	DecisionAccept Decision = iota
	// DecisionIdempotent acknowledges a resubmission of the payload already
	// at the journal head without journaling it again.
	DecisionIdempotent
	// DecisionConflict records a conflict instead of journaling.
	DecisionConflict
)

// Detect is the pure decision function for push processing. head is the
// current journal head for the entity (nil when the entity is new).
//
// Versions aligned means the device built its change on the authoritative
// state, so the change is accepted. A stale version with a byte-identical
// payload is a network retry of an already-applied change, not a true
// conflict. Anything else is divergence.
func Detect(incoming *IncomingChange, head *store.ChangeEntry) Decision {
	if head == nil {
		// Nothing journaled yet: there is no authoritative state to
		// diverge from, whatever version the client claims.
		return DecisionAccept
	}
	if incoming.ClientVersion == head.Version {
		return DecisionAccept
	}
	if store.PayloadEqual(incoming.Payload, head.Payload) {
		return DecisionIdempotent
	}
	return DecisionConflict
}

// ConflictManager persists conflicts and applies chosen resolutions.
type ConflictManager struct {
	store    store.Store
	journal  *Journal
	applier  entity.Applier
	notifier Notifier
}

func NewConflictManager(s store.Store, journal *Journal, applier entity.Applier, notifier Notifier) *ConflictManager {
	return &ConflictManager{
		store:    s,
		journal:  journal,
		applier:  applier,
		notifier: notifier,
	}
}

// Record persists a detected conflict, carrying both competing payloads and
// attributions. At most one unresolved conflict exists per entity: a repeat
// detection updates the existing record instead of creating a duplicate.
func (cm *ConflictManager) Record(ctx context.Context, ownerID, pusherDeviceID string, head *store.ChangeEntry, incoming *IncomingChange) (*store.Conflict, error) {
	existing, err := cm.store.GetUnresolvedConflict(ctx, ownerID, incoming.EntityType, incoming.EntityID)
	if err != nil {
		return nil, storagef("get unresolved conflict", err)
	}

	conflict := existing
	if conflict == nil {
		conflict = &store.Conflict{
			ID:         uuid.New().String(),
			OwnerID:    ownerID,
			EntityType: incoming.EntityType,
			EntityID:   incoming.EntityID,
			Status:     store.ConflictUnresolved,
			CreatedAt:  time.Now(),
		}
	}

	conflict.Device1ID = head.OriginDeviceID
	conflict.Device1Data = head.Payload
	conflict.Device1Version = head.Version
	conflict.Device2ID = pusherDeviceID
	conflict.Device2Data = incoming.Payload
	conflict.Device2Version = incoming.ClientVersion

	if existing == nil {
		if err := cm.store.CreateConflict(ctx, conflict); err != nil {
			return nil, storagef("create conflict", err)
		}
	} else {
		if err := cm.store.UpdateConflictSides(ctx, conflict); err != nil {
			return nil, storagef("update conflict", err)
		}
	}

	logger.Log.Warn("Sync conflict detected",
		zap.String("owner_id", ownerID),
		zap.String("entity_type", string(incoming.EntityType)),
		zap.String("entity_id", incoming.EntityID),
		zap.String("conflict_id", conflict.ID),
		zap.Int64("head_version", head.Version),
		zap.Int64("client_version", incoming.ClientVersion),
	)
	return conflict, nil
}

// List returns the owner's conflicts, optionally narrowed to one device
// (matching either side) and a status. Status defaults to unresolved.
func (cm *ConflictManager) List(ctx context.Context, ownerID, deviceID string, status store.ConflictStatus) ([]*store.Conflict, error) {
	if status == "" {
		status = store.ConflictUnresolved
	}
	conflicts, err := cm.store.ListConflicts(ctx, ownerID, store.ConflictFilter{DeviceID: deviceID, Status: status})
	if err != nil {
		return nil, storagef("list conflicts", err)
	}
	return conflicts, nil
}

// Resolve applies the chosen payload as a new change entry and marks the
// conflict resolved. Resolution is one-way: resolving an already-resolved
// conflict fails with NotFoundError so the audit trail cannot be rewritten.
// "merged" requires the caller to supply the merged payload; the resolver
// only persists outcomes, it never merges content itself.
func (cm *ConflictManager) Resolve(ctx context.Context, conflictID, ownerID string, resolution store.Resolution, resolvedData json.RawMessage) (*store.ChangeEntry, error) {
	if !store.ValidResolution(resolution) {
		return nil, validationf("unknown resolution %q", resolution)
	}

	conflict, err := cm.store.GetConflict(ctx, ownerID, conflictID)
	if err != nil {
		return nil, storagef("get conflict", err)
	}
	if conflict == nil || conflict.Status == store.ConflictResolved {
		return nil, &NotFoundError{Resource: "unresolved conflict", ID: conflictID}
	}

	var payload json.RawMessage
	switch resolution {
	case store.ResolutionDevice1:
		payload = conflict.Device1Data
	case store.ResolutionDevice2:
		payload = conflict.Device2Data
	case store.ResolutionMerged:
		if len(resolvedData) == 0 {
			return nil, validationf("resolution %q requires resolved_data", resolution)
		}
		payload = resolvedData
	}

	entry, err := cm.appendResolution(ctx, conflict, payload)
	if err != nil {
		return nil, err
	}

	ok, err := cm.store.MarkConflictResolved(ctx, ownerID, conflictID, resolution, time.Now())
	if err != nil {
		return nil, storagef("mark conflict resolved", err)
	}
	if !ok {
		return nil, &NotFoundError{Resource: "unresolved conflict", ID: conflictID}
	}

	if err := cm.applier.Apply(ctx, ownerID, entry.EntityType, entry.EntityID, entry.Operation, entry.Payload, entry.Version); err != nil {
		return nil, storagef("apply resolved entity", err)
	}
	cm.notifier.ChangeAvailable(ownerID, entry.EntityType, entry.EntityID)

	logger.Log.Info("Conflict resolved",
		zap.String("owner_id", ownerID),
		zap.String("conflict_id", conflictID),
		zap.String("resolution", string(resolution)),
		zap.Int64("new_version", entry.Version),
	)
	return entry, nil
}

// appendResolution journals the chosen payload at current+1, retrying the
// version compare-and-swap a few times if concurrent pushes keep advancing the
// entity underneath the resolution.
func (cm *ConflictManager) appendResolution(ctx context.Context, conflict *store.Conflict, payload json.RawMessage) (*store.ChangeEntry, error) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		head, err := cm.journal.Head(ctx, conflict.OwnerID, conflict.EntityType, conflict.EntityID)
		if err != nil {
			return nil, storagef("read journal head", err)
		}
		current := int64(0)
		if head != nil {
			current = head.Version
		}

		entry := &store.ChangeEntry{
			OwnerID:        conflict.OwnerID,
			EntityType:     conflict.EntityType,
			EntityID:       conflict.EntityID,
			Operation:      store.OpUpdate,
			Payload:        payload,
			OriginDeviceID: OriginResolution,
			Version:        current + 1,
		}
		err = cm.journal.Append(ctx, entry, current)
		if err == nil {
			return entry, nil
		}
		if err != store.ErrVersionRace {
			return nil, storagef("append resolution entry", err)
		}
		lastErr = err
	}
	return nil, storagef("append resolution entry", lastErr)
}
