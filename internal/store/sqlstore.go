package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"knowledge-sync-service/internal/database"
)

// SQLStore implements Store over a relational database. The same
// implementation serves both MySQL and SQLite; the handful of statements
// whose syntax differs are switched on the driver.
type SQLStore struct {
	db     *database.Database
	driver string
}

// New creates the schema if needed and returns a ready store.
func New(db *database.Database) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: db.Driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	schema := sqliteSchema
	if s.driver == "mysql" {
		schema = mysqlSchema
	}
	return s.db.ExecTx(context.Background(), func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ---- Devices ----

func (s *SQLStore) CreateDevice(ctx context.Context, d *Device) error {
	query := `INSERT INTO devices (device_id, owner_id, device_name, device_type, is_active, last_sync_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB.ExecContext(ctx, query,
		d.DeviceID,
		d.OwnerID,
		d.DeviceName,
		string(d.DeviceType),
		d.IsActive,
		d.LastSyncAt,
		d.CreatedAt.UnixNano(),
	)
	return err
}

func (s *SQLStore) GetDevice(ctx context.Context, ownerID, deviceID string) (*Device, error) {
	query := `SELECT device_id, owner_id, device_name, device_type, is_active, last_sync_at, created_at
			  FROM devices WHERE owner_id = ? AND device_id = ?`

	return scanDevice(s.db.DB.QueryRowContext(ctx, query, ownerID, deviceID))
}

func (s *SQLStore) ListDevices(ctx context.Context, ownerID string) ([]*Device, error) {
	query := `SELECT device_id, owner_id, device_name, device_type, is_active, last_sync_at, created_at
			  FROM devices WHERE owner_id = ? ORDER BY created_at`

	rows, err := s.db.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *SQLStore) UpdateDeviceInfo(ctx context.Context, ownerID, deviceID, name string, dtype DeviceType) error {
	query := `UPDATE devices SET device_name = ?, device_type = ? WHERE owner_id = ? AND device_id = ?`

	_, err := s.db.DB.ExecContext(ctx, query, name, string(dtype), ownerID, deviceID)
	return err
}

func (s *SQLStore) DeactivateDevice(ctx context.Context, ownerID, deviceID string) (bool, error) {
	query := `UPDATE devices SET is_active = FALSE WHERE owner_id = ? AND device_id = ?`

	res, err := s.db.DB.ExecContext(ctx, query, ownerID, deviceID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) UpdateDeviceLastSync(ctx context.Context, ownerID, deviceID string, lastSync int64) error {
	query := `UPDATE devices SET last_sync_at = ? WHERE owner_id = ? AND device_id = ?`

	_, err := s.db.DB.ExecContext(ctx, query, lastSync, ownerID, deviceID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var dtype string
	var createdAt int64
	err := row.Scan(
		&d.DeviceID,
		&d.OwnerID,
		&d.DeviceName,
		&dtype,
		&d.IsActive,
		&d.LastSyncAt,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.DeviceType = DeviceType(dtype)
	d.CreatedAt = time.Unix(0, createdAt)
	return &d, nil
}

// ---- Change journal ----

// AppendChange inserts a journal entry on the condition that the entity's
// current version still equals expectedVersion. The conditional insert is
// the compare-and-swap that serializes concurrent pushes to one entity:
// when another push got there first, zero rows are inserted and
// ErrVersionRace is returned.
func (s *SQLStore) AppendChange(ctx context.Context, e *ChangeEntry, expectedVersion int64) error {
	from := ""
	if s.driver == "mysql" {
		from = " FROM DUAL"
	}
	query := `INSERT INTO change_journal (id, owner_id, entity_type, entity_id, operation, payload, origin_device_id, version, server_timestamp)
			  SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?` + from + `
			  WHERE (SELECT COALESCE(MAX(version), 0) FROM change_journal
			         WHERE owner_id = ? AND entity_type = ? AND entity_id = ?) = ?`

	res, err := s.db.DB.ExecContext(ctx, query,
		e.ID,
		e.OwnerID,
		string(e.EntityType),
		e.EntityID,
		string(e.Operation),
		string(e.Payload),
		e.OriginDeviceID,
		e.Version,
		e.ServerTimestamp,
		e.OwnerID,
		string(e.EntityType),
		e.EntityID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionRace
	}
	return nil
}

func (s *SQLStore) LatestChange(ctx context.Context, ownerID string, entityType EntityType, entityID string) (*ChangeEntry, error) {
	query := `SELECT seq, id, owner_id, entity_type, entity_id, operation, payload, origin_device_id, version, server_timestamp
			  FROM change_journal
			  WHERE owner_id = ? AND entity_type = ? AND entity_id = ?
			  ORDER BY version DESC LIMIT 1`

	return scanChange(s.db.DB.QueryRowContext(ctx, query, ownerID, string(entityType), entityID))
}

func (s *SQLStore) ChangesSince(ctx context.Context, ownerID string, since int64, excludeDeviceID string, limit int) ([]*ChangeEntry, error) {
	query := `SELECT seq, id, owner_id, entity_type, entity_id, operation, payload, origin_device_id, version, server_timestamp
			  FROM change_journal
			  WHERE owner_id = ? AND server_timestamp > ? AND origin_device_id <> ?
			  ORDER BY server_timestamp ASC, seq ASC LIMIT ?`

	rows, err := s.db.DB.QueryContext(ctx, query, ownerID, since, excludeDeviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ChangeEntry
	for rows.Next() {
		e, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) PruneChangesBefore(ctx context.Context, cutoff int64) (int64, error) {
	query := `DELETE FROM change_journal WHERE server_timestamp < ?`

	res, err := s.db.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanChange(row rowScanner) (*ChangeEntry, error) {
	var e ChangeEntry
	var etype, op, payload string
	err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.OwnerID,
		&etype,
		&e.EntityID,
		&op,
		&payload,
		&e.OriginDeviceID,
		&e.Version,
		&e.ServerTimestamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.EntityType = EntityType(etype)
	e.Operation = Operation(op)
	e.Payload = []byte(payload)
	return &e, nil
}

// ---- Conflicts ----

func (s *SQLStore) CreateConflict(ctx context.Context, c *Conflict) error {
	query := `INSERT INTO conflicts (id, owner_id, entity_type, entity_id, device1_id, device2_id,
			  device1_data, device2_data, device1_version, device2_version, status, resolution, created_at, resolved_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, NULL)`

	_, err := s.db.DB.ExecContext(ctx, query,
		c.ID,
		c.OwnerID,
		string(c.EntityType),
		c.EntityID,
		c.Device1ID,
		c.Device2ID,
		string(c.Device1Data),
		string(c.Device2Data),
		c.Device1Version,
		c.Device2Version,
		string(c.Status),
		c.CreatedAt.UnixNano(),
	)
	return err
}

func (s *SQLStore) GetConflict(ctx context.Context, ownerID, id string) (*Conflict, error) {
	query := conflictSelect + ` WHERE owner_id = ? AND id = ?`

	return scanConflict(s.db.DB.QueryRowContext(ctx, query, ownerID, id))
}

func (s *SQLStore) GetUnresolvedConflict(ctx context.Context, ownerID string, entityType EntityType, entityID string) (*Conflict, error) {
	query := conflictSelect + ` WHERE owner_id = ? AND entity_type = ? AND entity_id = ? AND status = ? LIMIT 1`

	return scanConflict(s.db.DB.QueryRowContext(ctx, query, ownerID, string(entityType), entityID, string(ConflictUnresolved)))
}

// UpdateConflictSides refreshes both competing payloads and attributions on
// an existing unresolved conflict. A repeat detection on an already
// conflicted entity updates the record instead of creating a duplicate.
func (s *SQLStore) UpdateConflictSides(ctx context.Context, c *Conflict) error {
	query := `UPDATE conflicts SET device1_id = ?, device2_id = ?, device1_data = ?, device2_data = ?,
			  device1_version = ?, device2_version = ?
			  WHERE id = ? AND status = ?`

	_, err := s.db.DB.ExecContext(ctx, query,
		c.Device1ID,
		c.Device2ID,
		string(c.Device1Data),
		string(c.Device2Data),
		c.Device1Version,
		c.Device2Version,
		c.ID,
		string(ConflictUnresolved),
	)
	return err
}

func (s *SQLStore) ListConflicts(ctx context.Context, ownerID string, filter ConflictFilter) ([]*Conflict, error) {
	query := conflictSelect + ` WHERE owner_id = ?`
	args := []interface{}{ownerID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DeviceID != "" {
		query += ` AND (device1_id = ? OR device2_id = ?)`
		args = append(args, filter.DeviceID, filter.DeviceID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []*Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// MarkConflictResolved flips an unresolved conflict to resolved. Returns
// false when the conflict was already resolved (or does not exist), which
// callers surface as NotFound: resolution is a one-way transition.
func (s *SQLStore) MarkConflictResolved(ctx context.Context, ownerID, id string, resolution Resolution, resolvedAt time.Time) (bool, error) {
	query := `UPDATE conflicts SET status = ?, resolution = ?, resolved_at = ?
			  WHERE owner_id = ? AND id = ? AND status = ?`

	res, err := s.db.DB.ExecContext(ctx, query,
		string(ConflictResolved),
		string(resolution),
		resolvedAt.UnixNano(),
		ownerID,
		id,
		string(ConflictUnresolved),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const conflictSelect = `SELECT id, owner_id, entity_type, entity_id, device1_id, device2_id,
	device1_data, device2_data, device1_version, device2_version, status, resolution, created_at, resolved_at
	FROM conflicts`

func scanConflict(row rowScanner) (*Conflict, error) {
	var c Conflict
	var etype, status, d1, d2 string
	var createdAt int64
	var resolvedAt sql.NullInt64
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&etype,
		&c.EntityID,
		&c.Device1ID,
		&c.Device2ID,
		&d1,
		&d2,
		&c.Device1Version,
		&c.Device2Version,
		&status,
		&c.Resolution,
		&createdAt,
		&resolvedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.EntityType = EntityType(etype)
	c.Status = ConflictStatus(status)
	c.Device1Data = []byte(d1)
	c.Device2Data = []byte(d2)
	c.CreatedAt = time.Unix(0, createdAt)
	if resolvedAt.Valid {
		c.ResolvedAt = sql.NullTime{Time: time.Unix(0, resolvedAt.Int64), Valid: true}
	}
	return &c, nil
}

// ---- Entity snapshots ----

func (s *SQLStore) UpsertSnapshot(ctx context.Context, snap *EntitySnapshot) error {
	var query string
	if s.driver == "mysql" {
		query = `INSERT INTO entity_snapshots (owner_id, entity_type, entity_id, payload, version, deleted, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE
				 payload = VALUES(payload),
				 version = VALUES(version),
				 deleted = VALUES(deleted),
				 updated_at = VALUES(updated_at)`
	} else {
		query = `INSERT INTO entity_snapshots (owner_id, entity_type, entity_id, payload, version, deleted, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT (owner_id, entity_type, entity_id) DO UPDATE SET
				 payload = excluded.payload,
				 version = excluded.version,
				 deleted = excluded.deleted,
				 updated_at = excluded.updated_at`
	}

	_, err := s.db.DB.ExecContext(ctx, query,
		snap.OwnerID,
		string(snap.EntityType),
		snap.EntityID,
		string(snap.Payload),
		snap.Version,
		snap.Deleted,
		snap.UpdatedAt.UnixNano(),
	)
	return err
}

func (s *SQLStore) DeleteSnapshot(ctx context.Context, ownerID string, entityType EntityType, entityID string, version int64) error {
	// Soft delete: the row stays addressable for replay and audit.
	query := `UPDATE entity_snapshots SET deleted = TRUE, version = ?, updated_at = ?
			  WHERE owner_id = ? AND entity_type = ? AND entity_id = ?`

	_, err := s.db.DB.ExecContext(ctx, query,
		version,
		time.Now().UnixNano(),
		ownerID,
		string(entityType),
		entityID,
	)
	return err
}

func (s *SQLStore) GetSnapshot(ctx context.Context, ownerID string, entityType EntityType, entityID string) (*EntitySnapshot, error) {
	query := `SELECT owner_id, entity_type, entity_id, payload, version, deleted, updated_at
			  FROM entity_snapshots
			  WHERE owner_id = ? AND entity_type = ? AND entity_id = ?`

	var snap EntitySnapshot
	var etype, payload string
	var updatedAt int64
	err := s.db.DB.QueryRowContext(ctx, query, ownerID, string(entityType), entityID).Scan(
		&snap.OwnerID,
		&etype,
		&snap.EntityID,
		&payload,
		&snap.Version,
		&snap.Deleted,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.EntityType = EntityType(etype)
	snap.Payload = []byte(payload)
	snap.UpdatedAt = time.Unix(0, updatedAt)
	return &snap, nil
}
