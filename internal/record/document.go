package record

import (
	"fmt"
	"time"
)

// DocType classifies a catalog document.
type DocType string

const (
	DocExam    DocType = "exam"
	DocBook    DocType = "book"
	DocLecture DocType = "lecture"
	DocOther   DocType = "other"
)

// Valid reports whether t is one of the known document types.
func (t DocType) Valid() bool {
	switch t {
	case DocExam, DocBook, DocLecture, DocOther:
		return true
	}
	return false
}

// Document is a catalog entry mirrored from the remote store.
//
// Documents are immutable after upload except for the downloads counter
// (only ever incremented) and the rating, both updated through dedicated
// field updates. UpdatedAt is the last remote write timestamp and drives
// last-write-wins on the consuming side.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      DocType   `json:"type"`
	AuthorID  string    `json:"author_id"`
	Downloads int       `json:"downloads"`
	Rating    float64   `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required before a document may be written
// anywhere, local or remote.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("unknown document type %q", d.Type)
	}
	if d.AuthorID == "" {
		return fmt.Errorf("author_id is required")
	}
	if d.Downloads < 0 {
		return fmt.Errorf("downloads must not be negative (got %d)", d.Downloads)
	}
	return nil
}

// Fields returns the remote field map for this document.
func (d *Document) Fields() map[string]any {
	return map[string]any{
		"title":      d.Title,
		"type":       string(d.Type),
		"author_id":  d.AuthorID,
		"downloads":  d.Downloads,
		"rating":     d.Rating,
		"updated_at": d.UpdatedAt.Format(time.RFC3339),
	}
}

// DecodeDocument turns a remote catalog row into a Document.
//
// Defaults: missing or unknown type becomes DocOther, missing downloads
// becomes 0, missing rating becomes 0, missing updated_at becomes the
// zero time. Title and author are required; rows without them fail.
func DecodeDocument(id string, fields map[string]any) (*Document, error) {
	if id == "" {
		return nil, &DecodeError{Domain: DomainDocuments, Field: "id", Reason: "empty"}
	}

	title, ok := StringField(fields, "title")
	if !ok || title == "" {
		return nil, &DecodeError{Domain: DomainDocuments, ID: id, Field: "title", Reason: "missing"}
	}

	author, ok := StringField(fields, "author_id")
	if !ok || author == "" {
		return nil, &DecodeError{Domain: DomainDocuments, ID: id, Field: "author_id", Reason: "missing"}
	}

	typ := DocOther
	if s, ok := StringField(fields, "type"); ok && DocType(s).Valid() {
		typ = DocType(s)
	}

	downloads, _ := NumberField(fields, "downloads")
	if downloads < 0 {
		downloads = 0
	}
	rating, _ := NumberField(fields, "rating")

	var updated time.Time
	if s, ok := StringField(fields, "updated_at"); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			updated = t
		}
	}

	return &Document{
		ID:        id,
		Title:     title,
		Type:      typ,
		AuthorID:  author,
		Downloads: int(downloads),
		Rating:    rating,
		UpdatedAt: updated,
	}, nil
}
