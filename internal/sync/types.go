package sync

import (
	"encoding/json"

	"knowledge-sync-service/internal/store"
)

// IncomingChange is one client-submitted mutation in a push batch.
// ClientVersion is the entity version the device last saw for this entity
// (tracked from its last successful pull); the server compares it against
// the authoritative journal head to decide acceptance vs conflict.
type IncomingChange struct {
	EntityType    store.EntityType `json:"entity_type"`
	EntityID      string           `json:"entity_id"`
	Operation     store.Operation  `json:"operation"`
	Payload       json.RawMessage  `json:"payload"`
	ClientVersion int64            `json:"client_version"`
}

// AcceptedChange reports a journaled push item and the version it was
// assigned. Idempotent resubmissions are reported with the version already
// on record.
type AcceptedChange struct {
	EntityType store.EntityType `json:"entity_type"`
	EntityID   string           `json:"entity_id"`
	Version    int64            `json:"version"`
}

// ConflictedChange reports a push item that diverged from the journal head.
// The conflict id addresses the persisted record for later resolution.
type ConflictedChange struct {
	EntityType store.EntityType `json:"entity_type"`
	EntityID   string           `json:"entity_id"`
	ConflictID string           `json:"conflict_id"`
}

// PushResult is the per-item outcome of a push batch. A batch is processed
// sequentially and reports partial success; one item's failure never rolls
// back earlier items.
type PushResult struct {
	Accepted  []AcceptedChange   `json:"accepted"`
	Conflicts []ConflictedChange `json:"conflicts"`
}

// PullResult carries the changes visible to a device since its checkpoint,
// plus the new checkpoint (unix nanoseconds) to resume from. When no
// changes are returned the checkpoint is unchanged.
type PullResult struct {
	Changes    []*store.ChangeEntry `json:"changes"`
	Checkpoint int64                `json:"checkpoint"`
}
