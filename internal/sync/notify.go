package sync

import (
	"go.uber.org/zap"

	"knowledge-sync-service/internal/logger"
	"knowledge-sync-service/internal/store"
)

// Notifier is the hook for the external notification collaborator.
// ChangeAvailable is emitted after every successful journal append and is
// fire-and-forget: implementations must not block the push response.
type Notifier interface {
	ChangeAvailable(ownerID string, entityType store.EntityType, entityID string)
}

// LogNotifier logs change-available events. The default when no transport
// is wired in.
type LogNotifier struct{}

func (LogNotifier) ChangeAvailable(ownerID string, entityType store.EntityType, entityID string) {
	logger.Log.Debug("Change available",
		zap.String("owner_id", ownerID),
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", entityID),
	)
}

// ChangeEvent identifies an entity with new journal entries.
type ChangeEvent struct {
	OwnerID    string
	EntityType store.EntityType
	EntityID   string
}

// Bus fans change-available events into a buffered channel for an embedding
// process (a WebSocket hub, tests). Events are dropped when the channel is
// full rather than blocking the push path.
type Bus struct {
	events chan ChangeEvent
}

func NewBus(buffer int) *Bus {
	return &Bus{events: make(chan ChangeEvent, buffer)}
}

func (b *Bus) ChangeAvailable(ownerID string, entityType store.EntityType, entityID string) {
	select {
	case b.events <- ChangeEvent{OwnerID: ownerID, EntityType: entityType, EntityID: entityID}:
	default:
		logger.Log.Warn("Notification bus full, dropping event",
			zap.String("owner_id", ownerID),
			zap.String("entity_id", entityID),
		)
	}
}

// Events returns the receive side of the bus.
func (b *Bus) Events() <-chan ChangeEvent {
	return b.events
}
