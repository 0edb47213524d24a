package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS backup (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS backup_settings (
	backup_id TEXT PRIMARY KEY,
	compression TEXT NOT NULL,
	encryption INTEGER NOT NULL DEFAULT 0,
	excluded_paths TEXT NOT NULL, -- JSON array
	max_concurrent INTEGER NOT NULL,
	profile_id TEXT NOT NULL,
	FOREIGN KEY (backup_id) REFERENCES backup(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS backup_schedule (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	settings_id TEXT NOT NULL UNIQUE,
	enabled INTEGER NOT NULL DEFAULT 1,
	frequency TEXT NOT NULL,
	time_of_day TEXT NOT NULL,
	next_run_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (settings_id) REFERENCES backup_settings(backup_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS backup_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	backup_id TEXT NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (backup_id) REFERENCES backup(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS backup_file (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	backup_id TEXT NOT NULL,
	path TEXT NOT NULL,
	size INTEGER NOT NULL,
	checksum TEXT NOT NULL,
	encrypted INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (backup_id) REFERENCES backup(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_backup_created_at ON backup(created_at);
CREATE INDEX IF NOT EXISTS idx_backup_status ON backup(status);
CREATE INDEX IF NOT EXISTS idx_settings_profile_id ON backup_settings(profile_id);
CREATE INDEX IF NOT EXISTS idx_schedule_next_run_at ON backup_schedule(next_run_at);
CREATE INDEX IF NOT EXISTS idx_log_backup_id ON backup_log(backup_id);
CREATE INDEX IF NOT EXISTS idx_file_backup_id ON backup_file(backup_id);
`

type DB struct {
	*sqlx.DB
}

func New(dbPath string) (*DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// WAL allows the scheduler tick and running jobs to read while the API writes
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// NullTime helper for optional time fields
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: bindTime(*t), Valid: true}
}

// bindTime normalizes a timestamp before binding: UTC, monotonic clock
// reading stripped. The driver stores bound times as text, and a value
// carrying a monotonic reading serializes with a suffix that a scanned
// value never reproduces. The schedule claim compares next_run_at by SQL
// equality, so every stored timestamp must round-trip to identical text.
func bindTime(t time.Time) time.Time {
	return t.UTC().Round(0)
}
