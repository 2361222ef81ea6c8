package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/docshare/docsync/internal/record"
)

// UpsertIdentity records a successful sign-in. Cached identities are
// never automatically deleted; the table accumulates every account that
// has authenticated on this device.
func (db *DB) UpsertIdentity(ctx context.Context, id *record.Identity) error {
	if err := id.Validate(); err != nil {
		return fail("validate identity", err)
	}

	query := `
	INSERT INTO identities (id, display_name, email, avatar_url, last_signed_in)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		display_name = excluded.display_name,
		email = excluded.email,
		avatar_url = excluded.avatar_url,
		last_signed_in = excluded.last_signed_in
	`

	_, err := db.conn.ExecContext(ctx, query,
		id.ID,
		stringToNull(id.DisplayName),
		stringToNull(id.Email),
		stringToNull(id.AvatarURL),
		id.LastSignedIn.Format(time.RFC3339),
	)
	if err != nil {
		return fail("upsert identity", err)
	}
	return nil
}

// GetIdentity retrieves one cached identity.
// Returns (nil, nil) if the identity was never cached.
func (db *DB) GetIdentity(ctx context.Context, id string) (*record.Identity, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, display_name, email, avatar_url, last_signed_in FROM identities WHERE id = ?", id)

	ident, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get identity", err)
	}
	return ident, nil
}

// OtherIdentities returns all cached identities except the active one,
// most recently signed in first. Pass "" to list every cached identity.
func (db *DB) OtherIdentities(ctx context.Context, activeID string) ([]*record.Identity, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT id, display_name, email, avatar_url, last_signed_in
	FROM identities
	WHERE id != ?
	ORDER BY last_signed_in DESC`, activeID)
	if err != nil {
		return nil, fail("query identities", err)
	}
	defer rows.Close()

	var out []*record.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fail("scan identity", err)
		}
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate identities", err)
	}
	return out, nil
}

func scanIdentity(row scanner) (*record.Identity, error) {
	var ident record.Identity
	var name, email, avatar sql.NullString
	var signedIn string

	if err := row.Scan(&ident.ID, &name, &email, &avatar, &signedIn); err != nil {
		return nil, err
	}

	ident.DisplayName = name.String
	ident.Email = email.String
	ident.AvatarURL = avatar.String
	if t, err := time.Parse(time.RFC3339, signedIn); err == nil {
		ident.LastSignedIn = t
	}

	return &ident, nil
}
