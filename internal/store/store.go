// Package store provides SQLite persistence for the room event backlog
// and read markers.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sql database handle.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at the given path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	handle, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite is single-writer; serialize access.
	handle.SetMaxOpenConns(1)
	return &DB{DB: handle}, nil
}

// OpenInMemory opens a fresh in-memory database. Used by tests.
func OpenInMemory() (*DB, error) {
	handle, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	handle.SetMaxOpenConns(1)
	return &DB{DB: handle}, nil
}

// MigrateUp creates the schema if it does not exist.
func (db *DB) MigrateUp(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS room_events (
	room_id     TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	local_id    TEXT NOT NULL,
	event_id    TEXT,
	sender      TEXT NOT NULL,
	sender_name TEXT,
	timestamp   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	body        TEXT,
	membership  TEXT,
	state_key   TEXT,
	value       TEXT,
	PRIMARY KEY (room_id, seq)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_room_events_event_id
	ON room_events (room_id, event_id) WHERE event_id IS NOT NULL AND event_id != '';

CREATE TABLE IF NOT EXISTS read_markers (
	room_id        TEXT PRIMARY KEY,
	event_id       TEXT NOT NULL,
	timestamp      TEXT NOT NULL,
	fully_read     INTEGER NOT NULL DEFAULT 0
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
