package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/docshare/docsync/internal/record"
)

// setupTestDB creates a temporary cache database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cache.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return db
}

func testDoc(id, title string) *record.Document {
	return &record.Document{
		ID:        id,
		Title:     title,
		Type:      record.DocLecture,
		AuthorID:  "author-1",
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestUpsertDocumentOverwrites(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	doc := testDoc("doc-1", "Calculus Notes")
	if err := db.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() failed: %v", err)
	}

	// Same ID fully replaces the row, no partial merge.
	doc.Title = "Calculus Notes v2"
	doc.Downloads = 3
	if err := db.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument() update failed: %v", err)
	}

	got, err := db.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetDocument() returned nil")
	}
	if got.Title != "Calculus Notes v2" || got.Downloads != 3 {
		t.Errorf("got title=%q downloads=%d after overwrite", got.Title, got.Downloads)
	}

	count, err := db.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestGetDocumentMissing(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetDocument(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for missing document", got)
	}
}

func TestSearchDocuments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	docs := []*record.Document{
		testDoc("d-1", "Linear Algebra Exam"),
		testDoc("d-2", "Organic Chemistry Notes"),
		testDoc("d-3", "linear regression lecture"),
	}
	docs[0].Type = record.DocExam
	for _, d := range docs {
		if err := db.UpsertDocument(ctx, d); err != nil {
			t.Fatalf("UpsertDocument(%s) failed: %v", d.ID, err)
		}
	}

	// Case-insensitive title contains.
	got, err := db.SearchDocuments(ctx, "linear", "")
	if err != nil {
		t.Fatalf("SearchDocuments() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("search %q returned %d rows, want 2", "linear", len(got))
	}

	// Type filter narrows further.
	got, err = db.SearchDocuments(ctx, "linear", record.DocExam)
	if err != nil {
		t.Fatalf("SearchDocuments() failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "d-1" {
		t.Fatalf("typed search returned %d rows, want d-1 only", len(got))
	}
}

func TestReplaceAllDocumentsNoEmptyState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := []*record.Document{testDoc("a", "A"), testDoc("b", "B"), testDoc("c", "C")}
	if err := db.ReplaceAllDocuments(ctx, first); err != nil {
		t.Fatalf("ReplaceAllDocuments() failed: %v", err)
	}

	// Hammer reads while replaceAll swaps the full set repeatedly. A
	// reactive reader must never observe the half-deleted state.
	done := make(chan struct{})
	var wg sync.WaitGroup
	var sawEmpty bool
	var readErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			docs, err := db.Documents(ctx)
			if err != nil {
				readErr = err
				return
			}
			if len(docs) == 0 {
				sawEmpty = true
				return
			}
		}
	}()

	for i := 0; i < 20; i++ {
		next := []*record.Document{
			testDoc(fmt.Sprintf("x-%d", i), "X"),
			testDoc(fmt.Sprintf("y-%d", i), "Y"),
			testDoc(fmt.Sprintf("z-%d", i), "Z"),
		}
		if err := db.ReplaceAllDocuments(ctx, next); err != nil {
			t.Fatalf("ReplaceAllDocuments() iteration %d failed: %v", i, err)
		}
	}

	close(done)
	wg.Wait()

	if readErr != nil {
		t.Fatalf("concurrent read failed: %v", readErr)
	}
	if sawEmpty {
		t.Error("reader observed an empty catalog between two non-empty states")
	}
}

func TestWatchSignalsOnWrite(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ch, cancel := db.Watch(record.DomainDocuments)
	defer cancel()

	if err := db.UpsertDocument(ctx, testDoc("doc-1", "T")); err != nil {
		t.Fatalf("UpsertDocument() failed: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal after upsert")
	}

	// Writes to other domains must not signal document watchers.
	err := db.UpsertLeaderboardEntry(ctx, &record.LeaderboardEntry{ID: "u", DisplayName: "U"})
	if err != nil {
		t.Fatalf("UpsertLeaderboardEntry() failed: %v", err)
	}
	select {
	case <-ch:
		t.Error("document watcher signalled by leaderboard write")
	case <-time.After(50 * time.Millisecond):
	}

	// Cancel is safe to call twice.
	cancel()
	cancel()
}

func TestNotificationsPartitionedByOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	rows := []*record.Notification{
		{ID: "n-1", RemoteID: "n-1", Title: "for alice", OwnerID: "alice", Type: "general", Timestamp: base},
		{ID: "n-2:alice", RemoteID: "n-2", Title: "broadcast", OwnerID: "alice", Type: "general", Broadcast: true, Timestamp: base.Add(time.Second)},
		{ID: "n-2:bob", RemoteID: "n-2", Title: "broadcast", OwnerID: "bob", Type: "general", Broadcast: true, Timestamp: base.Add(time.Second)},
		{ID: "n-3", RemoteID: "n-3", Title: "for bob", OwnerID: "bob", Type: "general", IsRead: true, Timestamp: base},
	}
	for _, n := range rows {
		if err := db.UpsertNotification(ctx, n); err != nil {
			t.Fatalf("UpsertNotification(%s) failed: %v", n.ID, err)
		}
	}

	alice, err := db.NotificationsForOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("NotificationsForOwner(alice) failed: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("alice has %d rows, want 2", len(alice))
	}
	if alice[0].ID != "n-2:alice" {
		t.Errorf("newest-first ordering broken: got %q first", alice[0].ID)
	}

	unread, err := db.UnreadCount(ctx, "bob")
	if err != nil {
		t.Fatalf("UnreadCount(bob) failed: %v", err)
	}
	if unread != 1 {
		t.Errorf("bob unread = %d, want 1", unread)
	}
}

func TestLeaderboardTopEntries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entries := []*record.LeaderboardEntry{
		{ID: "u-1", DisplayName: "Ada", Points: 50},
		{ID: "u-2", DisplayName: "Grace", Points: 120},
		{ID: "u-3", DisplayName: "Edsger", Points: 80},
	}
	if err := db.ReplaceAllLeaderboard(ctx, entries); err != nil {
		t.Fatalf("ReplaceAllLeaderboard() failed: %v", err)
	}

	top, err := db.TopEntries(ctx, 2)
	if err != nil {
		t.Fatalf("TopEntries() failed: %v", err)
	}
	if len(top) != 2 || top[0].ID != "u-2" || top[1].ID != "u-3" {
		t.Fatalf("top order wrong: %+v", top)
	}
}

func TestIdentitiesAccumulate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	ids := []*record.Identity{
		{ID: "alice", DisplayName: "Alice", LastSignedIn: now.Add(-time.Hour)},
		{ID: "bob", Email: "bob@example.com", LastSignedIn: now},
	}
	for _, id := range ids {
		if err := db.UpsertIdentity(ctx, id); err != nil {
			t.Fatalf("UpsertIdentity(%s) failed: %v", id.ID, err)
		}
	}

	others, err := db.OtherIdentities(ctx, "bob")
	if err != nil {
		t.Fatalf("OtherIdentities() failed: %v", err)
	}
	if len(others) != 1 || others[0].ID != "alice" {
		t.Fatalf("others = %+v, want alice only", others)
	}

	// Re-signing in upserts, it doesn't duplicate.
	if err := db.UpsertIdentity(ctx, ids[0]); err != nil {
		t.Fatalf("UpsertIdentity() repeat failed: %v", err)
	}
	all, err := db.OtherIdentities(ctx, "")
	if err != nil {
		t.Fatalf("OtherIdentities(\"\") failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("cached identities = %d, want 2", len(all))
	}
}

func TestSyncStateZeroWhenNeverRefreshed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.LastRefresh(ctx, record.DomainDocuments, "")
	if err != nil {
		t.Fatalf("LastRefresh() failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("LastRefresh = %v, want zero time for fresh cache", got)
	}

	now := time.Now().UTC()
	if err := db.SetLastRefresh(ctx, record.DomainDocuments, "", now); err != nil {
		t.Fatalf("SetLastRefresh() failed: %v", err)
	}

	got, err = db.LastRefresh(ctx, record.DomainDocuments, "")
	if err != nil {
		t.Fatalf("LastRefresh() failed: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("LastRefresh = %v, want %v", got, now)
	}

	// Scopes are independent.
	scoped, err := db.LastRefresh(ctx, record.DomainDocuments, "alice")
	if err != nil {
		t.Fatalf("LastRefresh(scoped) failed: %v", err)
	}
	if !scoped.IsZero() {
		t.Errorf("scoped LastRefresh = %v, want zero", scoped)
	}
}

func TestStoreErrorsWrapSentinel(t *testing.T) {
	db := setupTestDB(t)

	// Invalid record: surfaced as a terminal store error.
	err := db.UpsertDocument(context.Background(), &record.Document{ID: "x"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrStorage) {
		t.Errorf("error %v does not wrap ErrStorage", err)
	}
}
