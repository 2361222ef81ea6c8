package store

import (
	"context"
	"database/sql"

	"github.com/docshare/docsync/internal/record"
)

// UpsertLeaderboardEntry inserts or fully replaces a standing by user ID.
func (db *DB) UpsertLeaderboardEntry(ctx context.Context, e *record.LeaderboardEntry) error {
	if err := e.Validate(); err != nil {
		return fail("validate leaderboard entry", err)
	}

	query := `
	INSERT INTO leaderboard (id, display_name, points, avatar_url)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		display_name = excluded.display_name,
		points = excluded.points,
		avatar_url = excluded.avatar_url
	`

	_, err := db.conn.ExecContext(ctx, query, e.ID, e.DisplayName, e.Points, stringToNull(e.AvatarURL))
	if err != nil {
		return fail("upsert leaderboard entry", err)
	}

	db.notify(record.DomainLeaderboard)
	return nil
}

// GetLeaderboardEntry retrieves one standing by user ID.
// Returns (nil, nil) if the user has no entry.
func (db *DB) GetLeaderboardEntry(ctx context.Context, id string) (*record.LeaderboardEntry, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, display_name, points, avatar_url FROM leaderboard WHERE id = ?", id)

	e, err := scanLeaderboardEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get leaderboard entry", err)
	}
	return e, nil
}

// TopEntries returns standings ordered by points descending.
// limit <= 0 returns all entries.
func (db *DB) TopEntries(ctx context.Context, limit int) ([]*record.LeaderboardEntry, error) {
	query := "SELECT id, display_name, points, avatar_url FROM leaderboard ORDER BY points DESC, id ASC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fail("query leaderboard", err)
	}
	defer rows.Close()

	var out []*record.LeaderboardEntry
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, fail("scan leaderboard entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate leaderboard", err)
	}
	return out, nil
}

// ReplaceAllLeaderboard atomically swaps the full standings, same
// contract as ReplaceAllDocuments.
func (db *DB) ReplaceAllLeaderboard(ctx context.Context, entries []*record.LeaderboardEntry) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM leaderboard"); err != nil {
		return fail("clear leaderboard", err)
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fail("validate leaderboard entry", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO leaderboard (id, display_name, points, avatar_url) VALUES (?, ?, ?, ?)",
			e.ID, e.DisplayName, e.Points, stringToNull(e.AvatarURL))
		if err != nil {
			return fail("insert leaderboard entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fail("commit replace", err)
	}

	db.notify(record.DomainLeaderboard)
	return nil
}

// CountLeaderboardEntries returns the number of cached standings.
func (db *DB) CountLeaderboardEntries(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM leaderboard").Scan(&count); err != nil {
		return 0, fail("count leaderboard", err)
	}
	return count, nil
}

func scanLeaderboardEntry(row scanner) (*record.LeaderboardEntry, error) {
	var e record.LeaderboardEntry
	var avatar sql.NullString

	if err := row.Scan(&e.ID, &e.DisplayName, &e.Points, &avatar); err != nil {
		return nil, err
	}
	if avatar.Valid {
		e.AvatarURL = avatar.String
	}
	return &e, nil
}
