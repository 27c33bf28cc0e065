// Package notestore provides the SQLite-backed note store. It owns note
// identity: ids come from an AUTOINCREMENT key and are never reused, and
// deleted notes keep their row.
package notestore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	parent_id     INTEGER,
	done          INTEGER NOT NULL DEFAULT 0,
	done_date     DATETIME,
	creation_date DATETIME NOT NULL,
	last_updated  DATETIME NOT NULL,
	deleted       INTEGER NOT NULL DEFAULT 0,
	deletion_date DATETIME,
	images        TEXT NOT NULL DEFAULT '[]',
	tags          TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_notes_parent ON notes(parent_id);
CREATE INDEX IF NOT EXISTS idx_notes_deleted ON notes(deleted);
`

// Store is the note store. All mutations are serialized by mu and run inside
// a single transaction, so check-then-act sequences are atomic with respect
// to concurrent sessions.
type Store struct {
	conn *sql.DB
	mu   sync.Mutex
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("notestore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notestore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notestore: apply schema: %w", err)
	}

	s := &Store{conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}
