package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/docshare/docsync/internal/record"
)

// LastRefresh returns the last successful refresh time for a domain.
// scope partitions identity-scoped domains; domain-wide state uses "".
// Returns the zero time when the domain has never been refreshed, which
// the staleness policy treats as always stale.
//
// The read-compare-write sequence around this value is deliberately not
// guarded by a transaction: two concurrent refreshes may both observe a
// stale timestamp and both fetch. Both results land via replaceAll, so
// last-write-wins and either outcome reflects near-current remote state.
func (db *DB) LastRefresh(ctx context.Context, domain record.Domain, scope string) (time.Time, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx,
		"SELECT last_refresh FROM sync_state WHERE domain = ? AND scope = ?",
		string(domain), scope).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fail("read sync state", err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fail("parse sync state", err)
	}
	return t, nil
}

// SetLastRefresh records a successful refresh. Callers must only invoke
// this after the refresh actually succeeded; failed refreshes leave the
// previous timestamp untouched.
func (db *DB) SetLastRefresh(ctx context.Context, domain record.Domain, scope string, t time.Time) error {
	query := `
	INSERT INTO sync_state (domain, scope, last_refresh)
	VALUES (?, ?, ?)
	ON CONFLICT(domain, scope) DO UPDATE SET
		last_refresh = excluded.last_refresh
	`

	_, err := db.conn.ExecContext(ctx, query, string(domain), scope, t.Format(time.RFC3339Nano))
	if err != nil {
		return fail("write sync state", err)
	}
	return nil
}
