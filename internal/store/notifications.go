package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/docshare/docsync/internal/record"
)

// UpsertNotification inserts or fully replaces a feed entry by ID.
//
// Realtime pushes are merged through here row by row; rows are applied
// independently, which is fine because upsert never deletes — a partial
// push only means some rows land slightly later.
func (db *DB) UpsertNotification(ctx context.Context, n *record.Notification) error {
	if err := n.Validate(); err != nil {
		return fail("validate notification", err)
	}

	query := `
	INSERT INTO notifications (id, remote_id, title, message, timestamp, owner_id, type, is_read, related_id, broadcast)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		remote_id = excluded.remote_id,
		title = excluded.title,
		message = excluded.message,
		timestamp = excluded.timestamp,
		owner_id = excluded.owner_id,
		type = excluded.type,
		is_read = excluded.is_read,
		related_id = excluded.related_id,
		broadcast = excluded.broadcast
	`

	_, err := db.conn.ExecContext(ctx, query,
		n.ID,
		n.RemoteID,
		n.Title,
		n.Message,
		n.Timestamp.Format(time.RFC3339),
		n.OwnerID,
		n.Type,
		boolToInt(n.IsRead),
		stringToNull(n.RelatedID),
		boolToInt(n.Broadcast),
	)
	if err != nil {
		return fail("upsert notification", err)
	}

	db.notify(record.DomainNotifications)
	return nil
}

// GetNotification retrieves a single feed entry by local ID.
// Returns (nil, nil) if no entry exists.
func (db *DB) GetNotification(ctx context.Context, id string) (*record.Notification, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, title, message, timestamp, owner_id, type, is_read, related_id, broadcast
	FROM notifications WHERE id = ?`, id)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get notification", err)
	}
	return n, nil
}

// NotificationsForOwner returns the feed for one identity, newest first.
// The owner is the partition key; broadcast rows were rewritten to the
// viewer at ingestion, so a single-key filter covers everything.
func (db *DB) NotificationsForOwner(ctx context.Context, owner string) ([]*record.Notification, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT id, remote_id, title, message, timestamp, owner_id, type, is_read, related_id, broadcast
	FROM notifications
	WHERE owner_id = ?
	ORDER BY timestamp DESC, id ASC`, owner)
	if err != nil {
		return nil, fail("query notifications", err)
	}
	defer rows.Close()

	var out []*record.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fail("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate notifications", err)
	}
	return out, nil
}

// UnreadCount returns the number of unread feed entries for one identity.
func (db *DB) UnreadCount(ctx context.Context, owner string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE owner_id = ? AND is_read = 0", owner).Scan(&count)
	if err != nil {
		return 0, fail("count unread", err)
	}
	return count, nil
}

// DeleteNotification removes a feed entry by local ID. Idempotent.
func (db *DB) DeleteNotification(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id); err != nil {
		return fail("delete notification", err)
	}
	db.notify(record.DomainNotifications)
	return nil
}

// CountNotifications returns the total number of cached feed entries
// across all identities.
func (db *DB) CountNotifications(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications").Scan(&count); err != nil {
		return 0, fail("count notifications", err)
	}
	return count, nil
}

func scanNotification(row scanner) (*record.Notification, error) {
	var n record.Notification
	var ts string
	var isRead, broadcast int
	var related sql.NullString

	err := row.Scan(&n.ID, &n.RemoteID, &n.Title, &n.Message, &ts, &n.OwnerID, &n.Type, &isRead, &related, &broadcast)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		n.Timestamp = t
	}
	n.IsRead = isRead != 0
	n.Broadcast = broadcast != 0
	if related.Valid {
		n.RelatedID = related.String
	}

	return &n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
