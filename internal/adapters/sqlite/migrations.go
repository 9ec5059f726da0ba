package sqlite

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version. Migrations are additive:
// existing tables and indexed columns are never dropped or renamed.
const SchemaVersion = 3

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "create_core_tables", createCoreTables},
	{2, "add_sync_failed_and_dead_letters", addSyncFailedAndDeadLetters},
	{3, "create_sync_lease", createSyncLease},
}

// applyMigrations applies all pending migrations in order.
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("could not create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("could not check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("could not begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("could not apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("could not record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("could not commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

// currentVersion returns the highest applied schema version.
func currentVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

const createCoreTables = `
CREATE TABLE assessments (
	local_key INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX idx_assessments_username_created ON assessments(username, created_at);

CREATE TABLE journals (
	local_key INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX idx_journals_username_created ON journals(username, created_at);

CREATE TABLE user_settings (
	local_key INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX idx_user_settings_username_created ON user_settings(username, created_at);

CREATE TABLE questions_cache (
	cache_key TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	cached_at INTEGER NOT NULL
);

CREATE TABLE sync_queue (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL,
	method TEXT NOT NULL,
	body BLOB,
	headers TEXT,
	priority TEXT NOT NULL,
	priority_rank INTEGER NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	last_attempt INTEGER,
	error TEXT NOT NULL DEFAULT '',
	record_kind TEXT NOT NULL DEFAULT '',
	record_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_sync_queue_order ON sync_queue(priority_rank, created_at, seq);
CREATE INDEX idx_sync_queue_record ON sync_queue(record_kind, record_id);
`

const addSyncFailedAndDeadLetters = `
ALTER TABLE assessments ADD COLUMN sync_failed INTEGER NOT NULL DEFAULT 0;
ALTER TABLE journals ADD COLUMN sync_failed INTEGER NOT NULL DEFAULT 0;
ALTER TABLE user_settings ADD COLUMN sync_failed INTEGER NOT NULL DEFAULT 0;

CREATE TABLE dead_letters (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	method TEXT NOT NULL,
	body BLOB,
	headers TEXT,
	priority TEXT NOT NULL,
	retry_count INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	last_attempt INTEGER,
	error TEXT NOT NULL DEFAULT '',
	record_kind TEXT NOT NULL DEFAULT '',
	record_id TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	failed_at INTEGER NOT NULL
);
`

const createSyncLease = `
CREATE TABLE sync_lease (
	name TEXT PRIMARY KEY,
	holder TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`
