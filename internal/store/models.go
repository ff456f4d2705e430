package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// DeviceType classifies a synchronizing client.
type DeviceType string

const (
	DeviceWeb     DeviceType = "web"
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
)

// ValidDeviceType reports whether t is a known device type.
func ValidDeviceType(t DeviceType) bool {
	switch t {
	case DeviceWeb, DeviceMobile, DeviceDesktop:
		return true
	}
	return false
}

// Device is a registered synchronizing client. Devices are soft-deactivated,
// never deleted, so journal attribution stays valid for audit.
type Device struct {
	DeviceID   string        `db:"device_id" json:"device_id"`
	OwnerID    string        `db:"owner_id" json:"owner_id"`
	DeviceName string        `db:"device_name" json:"device_name"`
	DeviceType DeviceType    `db:"device_type" json:"device_type"`
	IsActive   bool          `db:"is_active" json:"is_active"`
	LastSyncAt sql.NullInt64 `db:"last_sync_at" json:"last_sync_at"` // unix nanos
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// EntityType names the kind of knowledge-base record a change applies to.
type EntityType string

const (
	EntityKnowledge EntityType = "knowledge"
	EntityCategory  EntityType = "category"
	EntityTag       EntityType = "tag"
	EntityLink      EntityType = "link"
)

// ValidEntityType reports whether t is a known entity type.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityKnowledge, EntityCategory, EntityTag, EntityLink:
		return true
	}
	return false
}

// Operation is the kind of mutation recorded in a change entry.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ValidOperation reports whether op is a known operation.
func ValidOperation(op Operation) bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ChangeEntry is one immutable row of the append-only change journal.
// Payload is the full post-change snapshot of the entity, kept opaque;
// the sync engine never inspects its internal structure.
//
// Seq is assigned by the database and breaks server-timestamp ties in
// insertion order. ServerTimestamp is unix nanoseconds set on ingestion
// and is authoritative for ordering between devices.
type ChangeEntry struct {
	Seq             int64           `db:"seq" json:"-"`
	ID              string          `db:"id" json:"id"`
	OwnerID         string          `db:"owner_id" json:"owner_id"`
	EntityType      EntityType      `db:"entity_type" json:"entity_type"`
	EntityID        string          `db:"entity_id" json:"entity_id"`
	Operation       Operation       `db:"operation" json:"operation"`
	Payload         json.RawMessage `db:"payload" json:"payload"`
	OriginDeviceID  string          `db:"origin_device_id" json:"origin_device_id"`
	Version         int64           `db:"version" json:"version"`
	ServerTimestamp int64           `db:"server_timestamp" json:"server_timestamp"`
}

// Time returns the server timestamp as time.Time.
func (e *ChangeEntry) Time() time.Time {
	return time.Unix(0, e.ServerTimestamp)
}

// ConflictStatus is the lifecycle state of a conflict record.
type ConflictStatus string

const (
	ConflictUnresolved ConflictStatus = "unresolved"
	ConflictResolved   ConflictStatus = "resolved"
)

// Resolution names the payload chosen when resolving a conflict.
type Resolution string

const (
	ResolutionDevice1 Resolution = "device1"
	ResolutionDevice2 Resolution = "device2"
	ResolutionMerged  Resolution = "merged"
)

// ValidResolution reports whether r is a known resolution choice.
func ValidResolution(r Resolution) bool {
	switch r {
	case ResolutionDevice1, ResolutionDevice2, ResolutionMerged:
		return true
	}
	return false
}

// Conflict records a pair of divergent concurrent edits to one entity.
// Device1 is the side whose write currently holds the journal head;
// device2 is the pusher whose write was rejected. Conflicts are kept
// forever as an audit trail; only status/resolution fields ever change.
type Conflict struct {
	ID             string          `db:"id" json:"id"`
	OwnerID        string          `db:"owner_id" json:"owner_id"`
	EntityType     EntityType      `db:"entity_type" json:"entity_type"`
	EntityID       string          `db:"entity_id" json:"entity_id"`
	Device1ID      string          `db:"device1_id" json:"device1_id"`
	Device2ID      string          `db:"device2_id" json:"device2_id"`
	Device1Data    json.RawMessage `db:"device1_data" json:"device1_data"`
	Device2Data    json.RawMessage `db:"device2_data" json:"device2_data"`
	Device1Version int64           `db:"device1_version" json:"device1_version"`
	Device2Version int64           `db:"device2_version" json:"device2_version"`
	Status         ConflictStatus  `db:"status" json:"status"`
	Resolution     sql.NullString  `db:"resolution" json:"resolution"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt     sql.NullTime    `db:"resolved_at" json:"resolved_at"`
}

// EntitySnapshot is the materialized current state of one entity, maintained
// by the entity applier as changes are journaled. Deleted entities keep
// their row with the deleted flag set so version history stays addressable.
type EntitySnapshot struct {
	OwnerID    string          `db:"owner_id" json:"owner_id"`
	EntityType EntityType      `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	Version    int64           `db:"version" json:"version"`
	Deleted    bool            `db:"deleted" json:"deleted"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}
