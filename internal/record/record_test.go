package record

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeDocument(t *testing.T) {
	fields := map[string]any{
		"title":      "Linear Algebra Midterm",
		"type":       "exam",
		"author_id":  "user-1",
		"downloads":  float64(12),
		"rating":     4.5,
		"updated_at": "2025-06-01T10:00:00Z",
	}

	doc, err := DecodeDocument("doc-1", fields)
	if err != nil {
		t.Fatalf("DecodeDocument() failed: %v", err)
	}

	if doc.Title != "Linear Algebra Midterm" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Type != DocExam {
		t.Errorf("Type = %q, want exam", doc.Type)
	}
	if doc.Downloads != 12 {
		t.Errorf("Downloads = %d, want 12", doc.Downloads)
	}
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !doc.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", doc.UpdatedAt, want)
	}
}

func TestDecodeDocumentDefaults(t *testing.T) {
	fields := map[string]any{
		"title":     "Untyped upload",
		"author_id": "user-2",
		"type":      "powerpoint", // unknown type falls back to other
	}

	doc, err := DecodeDocument("doc-2", fields)
	if err != nil {
		t.Fatalf("DecodeDocument() failed: %v", err)
	}

	if doc.Type != DocOther {
		t.Errorf("Type = %q, want other", doc.Type)
	}
	if doc.Downloads != 0 || doc.Rating != 0 {
		t.Errorf("Downloads/Rating = %d/%v, want zero defaults", doc.Downloads, doc.Rating)
	}
	if !doc.UpdatedAt.IsZero() {
		t.Errorf("UpdatedAt = %v, want zero time", doc.UpdatedAt)
	}
}

func TestDecodeDocumentMissingRequired(t *testing.T) {
	_, err := DecodeDocument("doc-3", map[string]any{"author_id": "user-1"})
	if err == nil {
		t.Fatal("expected error for missing title")
	}

	var dErr *DecodeError
	if !errors.As(err, &dErr) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
	if dErr.Field != "title" {
		t.Errorf("Field = %q, want title", dErr.Field)
	}
}

func TestDecodeNotificationPersonal(t *testing.T) {
	fields := map[string]any{
		"title":    "Your upload was approved",
		"message":  "doc-1 is now visible",
		"owner_id": "alice",
		"is_read":  false,
	}

	n, err := DecodeNotification("n-1", fields, "alice")
	if err != nil {
		t.Fatalf("DecodeNotification() failed: %v", err)
	}

	if n.ID != "n-1" || n.RemoteID != "n-1" {
		t.Errorf("IDs = %q/%q, want n-1/n-1", n.ID, n.RemoteID)
	}
	if n.OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want alice", n.OwnerID)
	}
	if n.Broadcast {
		t.Error("personal row marked broadcast")
	}
	if n.Type != "general" {
		t.Errorf("Type = %q, want default general", n.Type)
	}
}

func TestDecodeNotificationBroadcastRewrite(t *testing.T) {
	fields := map[string]any{
		"title":    "Maintenance tonight",
		"owner_id": BroadcastOwner,
	}

	forA, err := DecodeNotification("n-2", fields, "alice")
	if err != nil {
		t.Fatalf("DecodeNotification(alice) failed: %v", err)
	}
	forB, err := DecodeNotification("n-2", fields, "bob")
	if err != nil {
		t.Fatalf("DecodeNotification(bob) failed: %v", err)
	}

	if forA.OwnerID != "alice" || forB.OwnerID != "bob" {
		t.Errorf("owners = %q/%q, want alice/bob", forA.OwnerID, forB.OwnerID)
	}
	if !forA.Broadcast || !forB.Broadcast {
		t.Error("broadcast flag not set")
	}
	if forA.ID == forB.ID {
		t.Errorf("local IDs collide: %q", forA.ID)
	}
	if forA.RemoteID != "n-2" || forB.RemoteID != "n-2" {
		t.Errorf("remote IDs = %q/%q, want n-2", forA.RemoteID, forB.RemoteID)
	}
}

func TestDecodeNotificationForeignOwnerRejected(t *testing.T) {
	fields := map[string]any{
		"title":    "Not yours",
		"owner_id": "mallory",
	}

	if _, err := DecodeNotification("n-3", fields, "alice"); err == nil {
		t.Fatal("expected rejection of a row owned by another identity")
	}
}

func TestResolveDisplayNamePrecedence(t *testing.T) {
	tests := []struct {
		name, email, phone, id string
		want                   string
	}{
		{"Ada", "ada@example.com", "+111", "u-1", "Ada"},
		{"", "ada@example.com", "+111", "u-1", "ada@example.com"},
		{"", "", "+111", "u-1", "+111"},
		{"", "", "", "u-123456789", "user-u-123456"},
	}

	for _, tt := range tests {
		got := ResolveDisplayName(tt.name, tt.email, tt.phone, tt.id)
		if got != tt.want {
			t.Errorf("ResolveDisplayName(%q, %q, %q, %q) = %q, want %q",
				tt.name, tt.email, tt.phone, tt.id, got, tt.want)
		}
	}
}

func TestDecodeLeaderboardEntryDefaults(t *testing.T) {
	// Email only: display name falls back to the email.
	entry, err := DecodeLeaderboardEntry("u-1", map[string]any{"email": "ada@example.com", "points": float64(40)})
	if err != nil {
		t.Fatalf("DecodeLeaderboardEntry() failed: %v", err)
	}
	if entry.DisplayName != "ada@example.com" {
		t.Errorf("DisplayName = %q, want email fallback", entry.DisplayName)
	}
	if entry.Points != 40 {
		t.Errorf("Points = %d, want 40", entry.Points)
	}

	// Nothing usable: deterministic placeholder, points default to zero.
	entry, err = DecodeLeaderboardEntry("abcdef1234", map[string]any{})
	if err != nil {
		t.Fatalf("DecodeLeaderboardEntry() failed: %v", err)
	}
	if entry.DisplayName != "user-abcdef12" {
		t.Errorf("DisplayName = %q, want user-abcdef12", entry.DisplayName)
	}
	if entry.Points != 0 {
		t.Errorf("Points = %d, want 0", entry.Points)
	}

	// Negative points are clamped rather than cached.
	entry, err = DecodeLeaderboardEntry("u-2", map[string]any{"points": float64(-5)})
	if err != nil {
		t.Fatalf("DecodeLeaderboardEntry() failed: %v", err)
	}
	if entry.Points != 0 {
		t.Errorf("Points = %d, want clamped 0", entry.Points)
	}
}
