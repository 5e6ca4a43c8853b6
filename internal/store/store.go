// Package store provides the authoritative SQLite persistence for notes,
// tags, shares, and users. Everything the secondary index serves is a
// projection of state owned here.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notes (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	content        TEXT NOT NULL,
	owner_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	hyperlinks     TEXT NOT NULL DEFAULT '[]',
	view_count     INTEGER NOT NULL DEFAULT 0,
	last_viewed_at DATETIME,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	usage_count INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (name = lower(name))
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id           TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	tag_id            TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	tagged_by_user_id TEXT,
	tagged_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(note_id, tag_id)
);

CREATE TABLE IF NOT EXISTS shares (
	id                  TEXT PRIMARY KEY,
	note_id             TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	shared_by_user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	shared_with_user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	permission          TEXT NOT NULL DEFAULT 'read',
	status              TEXT NOT NULL DEFAULT 'active',
	message             TEXT NOT NULL DEFAULT '',
	shared_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at          DATETIME,
	last_accessed_at    DATETIME,
	access_count        INTEGER NOT NULL DEFAULT 0,
	UNIQUE(note_id, shared_with_user_id)
);

CREATE INDEX IF NOT EXISTS idx_notes_owner_id ON notes(owner_id);
CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at);
CREATE INDEX IF NOT EXISTS idx_note_tags_note_id ON note_tags(note_id);
CREATE INDEX IF NOT EXISTS idx_note_tags_tag_id ON note_tags(tag_id);
CREATE INDEX IF NOT EXISTS idx_shares_note_id ON shares(note_id);
CREATE INDEX IF NOT EXISTS idx_shares_shared_with ON shares(shared_with_user_id);
CREATE INDEX IF NOT EXISTS idx_shares_shared_by ON shares(shared_by_user_id);
CREATE INDEX IF NOT EXISTS idx_tags_usage_count ON tags(usage_count);
`

// Store wraps a sql.DB with NoteMesh-specific operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
