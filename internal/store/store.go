// Package store provides the embedded cache database for docsync.
//
// The cache is the source of truth for reads: every query the UI issues
// is answered from here without touching the network. It runs on embedded
// SQLite with WAL mode so reactive readers keep a consistent snapshot
// while sync coordinators write.
//
// Tables:
//   - documents: the shared catalog
//   - notifications: per-identity feed (broadcast rows fanned out)
//   - leaderboard: contribution standings
//   - identities: previously-authenticated sessions
//   - sync_state: last successful refresh per (domain, scope)
//
// Store failures are terminal: every error returned here wraps ErrStorage
// and callers must not retry, since read correctness can no longer be
// guaranteed once the cache misbehaves.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrStorage marks a local cache failure. All errors returned by this
// package wrap it.
var ErrStorage = errors.New("local store")

// DB wraps the embedded SQLite connection together with the change hub
// that backs reactive queries.
type DB struct {
	conn *sql.DB
	path string
	hub  *hub
}

// Open creates or opens the cache database at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fail("create cache directory", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fail("open cache database", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fail("ping cache database", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
		hub:  newHub(),
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fail(pragma, err)
		}
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the cache database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fail("close cache database", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the cache schema if it doesn't exist. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		author_id TEXT NOT NULL,
		downloads INTEGER NOT NULL DEFAULT 0,
		rating REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		remote_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		type TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		related_id TEXT,
		broadcast INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS leaderboard (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		points INTEGER NOT NULL DEFAULT 0,
		avatar_url TEXT
	);

	CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		display_name TEXT,
		email TEXT,
		avatar_url TEXT,
		last_signed_in TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		domain TEXT NOT NULL,
		scope TEXT NOT NULL DEFAULT '',
		last_refresh TEXT NOT NULL,
		PRIMARY KEY (domain, scope)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);
	CREATE INDEX IF NOT EXISTS idx_documents_author ON documents(author_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_owner ON notifications(owner_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(owner_id, is_read);
	CREATE INDEX IF NOT EXISTS idx_leaderboard_points ON leaderboard(points);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fail("initialize schema", err)
	}

	return nil
}

// fail wraps a store error so callers can recognize terminal cache
// failures via errors.Is(err, ErrStorage).
func fail(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// stringToNull converts an optional string to a nullable SQL value.
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
