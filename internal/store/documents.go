package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/docshare/docsync/internal/record"
)

// UpsertDocument inserts or fully replaces a catalog entry by ID.
// There is no partial-field merge; callers read-modify-write.
func (db *DB) UpsertDocument(ctx context.Context, doc *record.Document) error {
	if err := doc.Validate(); err != nil {
		return fail("validate document", err)
	}

	query := `
	INSERT INTO documents (id, title, type, author_id, downloads, rating, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		type = excluded.type,
		author_id = excluded.author_id,
		downloads = excluded.downloads,
		rating = excluded.rating,
		updated_at = excluded.updated_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		string(doc.Type),
		doc.AuthorID,
		doc.Downloads,
		doc.Rating,
		doc.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fail("upsert document", err)
	}

	db.notify(record.DomainDocuments)
	return nil
}

// GetDocument retrieves a single catalog entry.
// Returns (nil, nil) if no entry with the ID exists.
func (db *DB) GetDocument(ctx context.Context, id string) (*record.Document, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT id, title, type, author_id, downloads, rating, updated_at
	FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get document", err)
	}
	return doc, nil
}

// SearchDocuments queries the local catalog with a case-insensitive
// title-contains predicate and an optional type filter. Filtering always
// happens here, never remotely; a refresh only makes the local copy
// recent enough to filter.
func (db *DB) SearchDocuments(ctx context.Context, query string, typ record.DocType) ([]*record.Document, error) {
	var conditions []string
	var args []interface{}

	if query != "" {
		conditions = append(conditions, "title LIKE ? COLLATE NOCASE")
		args = append(args, "%"+query+"%")
	}
	if typ != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(typ))
	}

	sqlQuery := `
	SELECT id, title, type, author_id, downloads, rating, updated_at
	FROM documents
	`
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY updated_at DESC, id ASC"

	rows, err := db.conn.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fail("search documents", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Documents returns the full local catalog.
func (db *DB) Documents(ctx context.Context) ([]*record.Document, error) {
	return db.SearchDocuments(ctx, "", "")
}

// ReplaceAllDocuments atomically swaps the entire catalog for the given
// set. Delete and insert run in one transaction and the change signal
// fires only after commit, so a reactive reader never observes the
// half-deleted state in between.
func (db *DB) ReplaceAllDocuments(ctx context.Context, docs []*record.Document) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fail("clear documents", err)
	}

	insert := `
	INSERT INTO documents (id, title, type, author_id, downloads, rating, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return fail("validate document", err)
		}
		_, err := tx.ExecContext(ctx, insert,
			doc.ID,
			doc.Title,
			string(doc.Type),
			doc.AuthorID,
			doc.Downloads,
			doc.Rating,
			doc.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fail("insert document", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fail("commit replace", err)
	}

	db.notify(record.DomainDocuments)
	return nil
}

// DeleteDocument removes a catalog entry. Idempotent.
func (db *DB) DeleteDocument(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fail("delete document", err)
	}
	db.notify(record.DomainDocuments)
	return nil
}

// CountDocuments returns the number of cached catalog entries.
func (db *DB) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fail("count documents", err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*record.Document, error) {
	var doc record.Document
	var typ, updatedAt string

	err := row.Scan(&doc.ID, &doc.Title, &typ, &doc.AuthorID, &doc.Downloads, &doc.Rating, &updatedAt)
	if err != nil {
		return nil, err
	}

	doc.Type = record.DocType(typ)
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		doc.UpdatedAt = t
	}

	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*record.Document, error) {
	var docs []*record.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fail("scan document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate documents", err)
	}
	return docs, nil
}
