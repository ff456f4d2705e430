package store

// Schema statements per driver. Column types differ (auto-increment,
// payload storage) but the shape is identical: a devices table, the
// append-only change journal, the conflict table, and the materialized
// entity snapshots maintained by the applier.
//
// All time columns are stored as unix nanoseconds (BIGINT) so checkpoint
// comparisons never lose sub-millisecond precision to driver formatting.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		device_id    VARCHAR(64)  NOT NULL,
		owner_id     VARCHAR(64)  NOT NULL,
		device_name  VARCHAR(255) NOT NULL,
		device_type  VARCHAR(16)  NOT NULL,
		is_active    BOOLEAN      NOT NULL DEFAULT TRUE,
		last_sync_at BIGINT       NULL,
		created_at   BIGINT       NOT NULL,
		PRIMARY KEY (owner_id, device_id)
	)`,
	`CREATE TABLE IF NOT EXISTS change_journal (
		seq              BIGINT       NOT NULL AUTO_INCREMENT,
		id               VARCHAR(36)  NOT NULL,
		owner_id         VARCHAR(64)  NOT NULL,
		entity_type      VARCHAR(16)  NOT NULL,
		entity_id        VARCHAR(64)  NOT NULL,
		operation        VARCHAR(16)  NOT NULL,
		payload          MEDIUMTEXT   NOT NULL,
		origin_device_id VARCHAR(64)  NOT NULL,
		version          BIGINT       NOT NULL,
		server_timestamp BIGINT       NOT NULL,
		PRIMARY KEY (seq),
		INDEX idx_journal_owner_ts (owner_id, server_timestamp),
		INDEX idx_journal_entity (owner_id, entity_type, entity_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS conflicts (
		id              VARCHAR(36) NOT NULL,
		owner_id        VARCHAR(64) NOT NULL,
		entity_type     VARCHAR(16) NOT NULL,
		entity_id       VARCHAR(64) NOT NULL,
		device1_id      VARCHAR(64) NOT NULL,
		device2_id      VARCHAR(64) NOT NULL,
		device1_data    MEDIUMTEXT  NOT NULL,
		device2_data    MEDIUMTEXT  NOT NULL,
		device1_version BIGINT      NOT NULL,
		device2_version BIGINT      NOT NULL,
		status          VARCHAR(16) NOT NULL,
		resolution      VARCHAR(16) NULL,
		created_at      BIGINT      NOT NULL,
		resolved_at     BIGINT      NULL,
		PRIMARY KEY (id),
		INDEX idx_conflicts_owner_status (owner_id, status),
		INDEX idx_conflicts_entity (owner_id, entity_type, entity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS entity_snapshots (
		owner_id    VARCHAR(64) NOT NULL,
		entity_type VARCHAR(16) NOT NULL,
		entity_id   VARCHAR(64) NOT NULL,
		payload     MEDIUMTEXT  NOT NULL,
		version     BIGINT      NOT NULL,
		deleted     BOOLEAN     NOT NULL DEFAULT FALSE,
		updated_at  BIGINT      NOT NULL,
		PRIMARY KEY (owner_id, entity_type, entity_id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		device_id    TEXT    NOT NULL,
		owner_id     TEXT    NOT NULL,
		device_name  TEXT    NOT NULL,
		device_type  TEXT    NOT NULL,
		is_active    INTEGER NOT NULL DEFAULT 1,
		last_sync_at INTEGER,
		created_at   INTEGER NOT NULL,
		PRIMARY KEY (owner_id, device_id)
	)`,
	`CREATE TABLE IF NOT EXISTS change_journal (
		seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		id               TEXT    NOT NULL,
		owner_id         TEXT    NOT NULL,
		entity_type      TEXT    NOT NULL,
		entity_id        TEXT    NOT NULL,
		operation        TEXT    NOT NULL,
		payload          TEXT    NOT NULL,
		origin_device_id TEXT    NOT NULL,
		version          INTEGER NOT NULL,
		server_timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_owner_ts ON change_journal (owner_id, server_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_entity ON change_journal (owner_id, entity_type, entity_id, version)`,
	`CREATE TABLE IF NOT EXISTS conflicts (
		id              TEXT    NOT NULL PRIMARY KEY,
		owner_id        TEXT    NOT NULL,
		entity_type     TEXT    NOT NULL,
		entity_id       TEXT    NOT NULL,
		device1_id      TEXT    NOT NULL,
		device2_id      TEXT    NOT NULL,
		device1_data    TEXT    NOT NULL,
		device2_data    TEXT    NOT NULL,
		device1_version INTEGER NOT NULL,
		device2_version INTEGER NOT NULL,
		status          TEXT    NOT NULL,
		resolution      TEXT,
		created_at      INTEGER NOT NULL,
		resolved_at     INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conflicts_owner_status ON conflicts (owner_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_conflicts_entity ON conflicts (owner_id, entity_type, entity_id)`,
	`CREATE TABLE IF NOT EXISTS entity_snapshots (
		owner_id    TEXT    NOT NULL,
		entity_type TEXT    NOT NULL,
		entity_id   TEXT    NOT NULL,
		payload     TEXT    NOT NULL,
		version     INTEGER NOT NULL,
		deleted     INTEGER NOT NULL DEFAULT 0,
		updated_at  INTEGER NOT NULL,
		PRIMARY KEY (owner_id, entity_type, entity_id)
	)`,
}
