package sync

import (
	"context"

	"go.uber.org/zap"

	"knowledge-sync-service/internal/config"
	"knowledge-sync-service/internal/entity"
	"knowledge-sync-service/internal/logger"
	"knowledge-sync-service/internal/store"
)

// Manager implements the pull/push reconciliation protocol. Each call is
// synchronous and idempotent; no syncing state is kept between calls.
// Concurrency safety comes from the journal's per-entity version
// compare-and-swap, not from any device-level lock.
type Manager struct {
	cfg       config.SyncConfig
	store     store.Store
	registry  *Registry
	journal   *Journal
	conflicts *ConflictManager
	applier   entity.Applier
	notifier  Notifier
}

func NewManager(cfg config.SyncConfig, s store.Store, applier entity.Applier, notifier Notifier) *Manager {
	journal := NewJournal(s)
	return &Manager{
		cfg:       cfg,
		store:     s,
		registry:  NewRegistry(s),
		journal:   journal,
		conflicts: NewConflictManager(s, journal, applier, notifier),
		applier:   applier,
		notifier:  notifier,
	}
}

// Registry exposes the device registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Conflicts exposes the conflict store and resolver.
func (m *Manager) Conflicts() *ConflictManager {
	return m.conflicts
}

// Pull returns the changes a device has not seen yet, excluding its own,
// and advances the device checkpoint. since overrides the stored
// last_sync_at when non-nil. An empty change set leaves the checkpoint
// untouched so a later entry can never hide behind an advanced timestamp.
func (m *Manager) Pull(ctx context.Context, deviceID, ownerID string, since *int64) (*PullResult, error) {
	device, err := m.registry.requireActive(ctx, deviceID, ownerID)
	if err != nil {
		return nil, err
	}

	checkpoint := int64(0)
	switch {
	case since != nil:
		checkpoint = *since
	case device.LastSyncAt.Valid:
		checkpoint = device.LastSyncAt.Int64
	}

	limit := m.cfg.MaxPullChanges
	if limit <= 0 {
		limit = 1000
	}
	entries, err := m.journal.Since(ctx, ownerID, checkpoint, deviceID, limit)
	if err != nil {
		return nil, storagef("read changes", err)
	}

	if len(entries) > 0 {
		checkpoint = entries[len(entries)-1].ServerTimestamp
		if err := m.store.UpdateDeviceLastSync(ctx, ownerID, deviceID, checkpoint); err != nil {
			return nil, storagef("update device checkpoint", err)
		}
	}

	logger.Log.Debug("Pull served",
		zap.String("owner_id", ownerID),
		zap.String("device_id", deviceID),
		zap.Int("changes", len(entries)),
		zap.Int64("checkpoint", checkpoint),
	)

	if entries == nil {
		entries = []*store.ChangeEntry{}
	}
	return &PullResult{Changes: entries, Checkpoint: checkpoint}, nil
}

// Push ingests a batch of local changes from a device. Items are processed
// sequentially in submission order, each with its own outcome: journaled
// with a newly assigned version, or recorded as a conflict. A conflict is a
// reported result, not an error, and never advances the journal.
func (m *Manager) Push(ctx context.Context, deviceID, ownerID string, changes []*IncomingChange) (*PushResult, error) {
	if max := m.cfg.MaxPushBatch; max > 0 && len(changes) > max {
		return nil, validationf("push batch of %d exceeds limit %d", len(changes), max)
	}
	for i, c := range changes {
		if err := validateChange(i, c); err != nil {
			return nil, err
		}
	}

	if _, err := m.registry.requireActive(ctx, deviceID, ownerID); err != nil {
		return nil, err
	}

	result := &PushResult{
		Accepted:  []AcceptedChange{},
		Conflicts: []ConflictedChange{},
	}
	for _, c := range changes {
		if err := m.processChange(ctx, deviceID, ownerID, c, result); err != nil {
			// Earlier items in the batch are already journaled and stay
			// journaled; the version checks make a retry of the whole
			// batch idempotent.
			return nil, err
		}
	}

	logger.Log.Info("Push processed",
		zap.String("owner_id", ownerID),
		zap.String("device_id", deviceID),
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return result, nil
}

func validateChange(i int, c *IncomingChange) error {
	if c == nil {
		return validationf("changes[%d] is empty", i)
	}
	if !store.ValidEntityType(c.EntityType) {
		return validationf("changes[%d]: unknown entity_type %q", i, c.EntityType)
	}
	if c.EntityID == "" {
		return validationf("changes[%d]: entity_id is required", i)
	}
	if !store.ValidOperation(c.Operation) {
		return validationf("changes[%d]: unknown operation %q", i, c.Operation)
	}
	if c.ClientVersion < 0 {
		return validationf("changes[%d]: client_version must not be negative", i)
	}
	if len(c.Payload) == 0 && c.Operation != store.OpDelete {
		return validationf("changes[%d]: payload is required for %s", i, c.Operation)
	}
	return nil
}

func (m *Manager) processChange(ctx context.Context, deviceID, ownerID string, c *IncomingChange, result *PushResult) error {
	// Two attempts: if the version compare-and-swap loses a race against a
	// concurrent push, the change is re-evaluated against the new head and
	// lands as either an idempotent ack or a conflict.
	for attempt := 0; attempt < 2; attempt++ {
		head, err := m.journal.Head(ctx, ownerID, c.EntityType, c.EntityID)
		if err != nil {
			return storagef("read journal head", err)
		}

		switch Detect(c, head) {
		case DecisionIdempotent:
			result.Accepted = append(result.Accepted, AcceptedChange{
				EntityType: c.EntityType,
				EntityID:   c.EntityID,
				Version:    head.Version,
			})
			return nil

		case DecisionConflict:
			conflict, err := m.conflicts.Record(ctx, ownerID, deviceID, head, c)
			if err != nil {
				return err
			}
			result.Conflicts = append(result.Conflicts, ConflictedChange{
				EntityType: c.EntityType,
				EntityID:   c.EntityID,
				ConflictID: conflict.ID,
			})
			return nil
		}

		current := int64(0)
		if head != nil {
			current = head.Version
		}
		entry := &store.ChangeEntry{
			OwnerID:        ownerID,
			EntityType:     c.EntityType,
			EntityID:       c.EntityID,
			Operation:      c.Operation,
			Payload:        c.Payload,
			OriginDeviceID: deviceID,
			Version:        current + 1,
		}
		err = m.journal.Append(ctx, entry, current)
		if err == store.ErrVersionRace {
			continue
		}
		if err != nil {
			return storagef("append change", err)
		}

		if err := m.applier.Apply(ctx, ownerID, c.EntityType, c.EntityID, c.Operation, c.Payload, entry.Version); err != nil {
			return storagef("apply entity change", err)
		}
		m.notifier.ChangeAvailable(ownerID, c.EntityType, c.EntityID)

		result.Accepted = append(result.Accepted, AcceptedChange{
			EntityType: c.EntityType,
			EntityID:   c.EntityID,
			Version:    entry.Version,
		})
		return nil
	}

	// Lost the race twice; report divergence against the latest head.
	head, err := m.journal.Head(ctx, ownerID, c.EntityType, c.EntityID)
	if err != nil {
		return storagef("read journal head", err)
	}
	conflict, err := m.conflicts.Record(ctx, ownerID, deviceID, head, c)
	if err != nil {
		return err
	}
	result.Conflicts = append(result.Conflicts, ConflictedChange{
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		ConflictID: conflict.ID,
	})
	return nil
}
