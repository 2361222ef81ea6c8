package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/remote"
)

func setupCatalog(t *testing.T) (*Catalog, *remote.Fake, *fakeClock, *eventRecorder) {
	t.Helper()

	db := setupTestDB(t)
	fake := remote.NewFake()
	clock := newFakeClock()
	rec := &eventRecorder{}
	cat := NewCatalog(db, fake, Options{Clock: clock, Logger: testLogger(t), Events: rec.sink})
	return cat, fake, clock, rec
}

func seedCatalog(fake *remote.Fake) {
	fake.Seed(record.DomainDocuments,
		remote.Record{ID: "doc-1", Fields: map[string]any{
			"title": "Calculus Notes", "type": "lecture", "author_id": "alice",
			"downloads": float64(3), "rating": 4.5, "updated_at": "2026-02-20T10:00:00Z",
		}},
		remote.Record{ID: "doc-2", Fields: map[string]any{
			"title": "Linear Algebra Exam", "type": "exam", "author_id": "bob",
			"updated_at": "2026-02-21T10:00:00Z",
		}},
	)
}

func TestFirstReadPullsSnapshot(t *testing.T) {
	cat, fake, _, rec := setupCatalog(t)
	seedCatalog(fake)

	docs, err := cat.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if fake.Fetches(record.DomainDocuments) != 1 {
		t.Errorf("fetches = %d, want 1", fake.Fetches(record.DomainDocuments))
	}

	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != EventRefreshComplete {
		t.Errorf("events = %v, want [refresh_complete]", kinds)
	}
}

func TestFreshCacheSkipsFetch(t *testing.T) {
	cat, fake, clock, _ := setupCatalog(t)
	seedCatalog(fake)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := cat.Documents(ctx); err != nil {
			t.Fatalf("Documents() #%d failed: %v", i, err)
		}
	}
	if fake.Fetches(record.DomainDocuments) != 1 {
		t.Fatalf("fetches = %d within TTL, want 1", fake.Fetches(record.DomainDocuments))
	}

	clock.Advance(16 * time.Minute)
	if _, err := cat.Documents(ctx); err != nil {
		t.Fatalf("Documents() after TTL failed: %v", err)
	}
	if fake.Fetches(record.DomainDocuments) != 2 {
		t.Errorf("fetches = %d after TTL, want 2", fake.Fetches(record.DomainDocuments))
	}
}

func TestCacheSurvivesUnreachableService(t *testing.T) {
	cat, fake, clock, _ := setupCatalog(t)
	seedCatalog(fake)
	ctx := context.Background()

	before, err := cat.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}

	clock.Advance(time.Hour)
	fake.FetchErr[record.DomainDocuments] = remote.ErrNetwork

	after, err := cat.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents() with dead service failed: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("got %d documents after failure, want %d", len(after), len(before))
	}
	for i := range before {
		if *after[i] != *before[i] {
			t.Errorf("document %d changed across failed refresh: %+v != %+v", i, after[i], before[i])
		}
	}

	// The failed attempt must not advance the refresh timestamp: the
	// next read after recovery retries immediately.
	fake.FetchErr[record.DomainDocuments] = nil
	if _, err := cat.Documents(ctx); err != nil {
		t.Fatalf("Documents() after recovery failed: %v", err)
	}
	if fake.Fetches(record.DomainDocuments) != 3 {
		t.Errorf("fetches = %d, want 3 (initial, failed, recovery)", fake.Fetches(record.DomainDocuments))
	}
}

func TestExplicitRefreshSurfacesRemoteError(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	fake.FetchErr[record.DomainDocuments] = remote.ErrNetwork

	if err := cat.Refresh(context.Background()); !remote.IsNetwork(err) {
		t.Fatalf("Refresh() error = %v, want network failure", err)
	}
}

func TestRefreshSkipsMalformedRows(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	fake.Seed(record.DomainDocuments,
		remote.Record{ID: "doc-1", Fields: map[string]any{"title": "Good", "author_id": "alice"}},
		remote.Record{ID: "doc-2", Fields: map[string]any{"author_id": "bob"}}, // no title
	)

	if err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	docs, err := cat.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" {
		t.Errorf("docs = %+v, want only doc-1", docs)
	}
}

func TestRefreshDiscardsResultAfterCancel(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	seedCatalog(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cat.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Refresh() error = %v, want context.Canceled", err)
	}

	docs, err := cat.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}
	// The fresh read fetches for itself; the cancelled refresh must not
	// have installed anything or advanced the timestamp beforehand.
	if len(docs) != 2 {
		t.Errorf("got %d documents, want 2 from the uncancelled read", len(docs))
	}
}

func TestSearchMatchesLocally(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	seedCatalog(fake)
	ctx := context.Background()

	docs, err := cat.Search(ctx, "algebra", record.DocType(""))
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-2" {
		t.Fatalf("Search(algebra) = %+v, want doc-2", docs)
	}

	// Search keeps working against the cache when the service dies.
	fake.FetchErr[record.DomainDocuments] = remote.ErrNetwork
	docs, err = cat.Search(ctx, "", record.DocExam)
	if err != nil {
		t.Fatalf("Search() offline failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Type != record.DocExam {
		t.Errorf("Search(exam) = %+v", docs)
	}
}

func TestUploadWritesRemoteFirst(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	ctx := context.Background()
	doc := &record.Document{ID: "doc-9", Title: "New Notes", Type: record.DocLecture, AuthorID: "alice"}

	fake.WriteErr = &remote.ServiceError{Code: 403, Message: "quota exceeded"}
	if err := cat.Upload(ctx, doc); err == nil {
		t.Fatal("Upload() succeeded against rejecting service")
	}
	if got, _ := cat.Get(ctx, "doc-9"); got != nil {
		t.Fatal("rejected upload still landed in cache")
	}

	fake.WriteErr = nil
	if err := cat.Upload(ctx, doc); err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	got, err := cat.Get(ctx, "doc-9")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got == nil || got.Title != "New Notes" {
		t.Errorf("cached doc = %+v", got)
	}
	if len(fake.Written) != 1 || fake.Written[0].ID != "doc-9" {
		t.Errorf("remote writes = %+v", fake.Written)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped on upload")
	}
}

func TestDeleteRemovesEverywhere(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	seedCatalog(fake)
	ctx := context.Background()

	if _, err := cat.Documents(ctx); err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}
	if err := cat.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if got, _ := cat.Get(ctx, "doc-1"); got != nil {
		t.Error("doc-1 still cached after delete")
	}
	if len(fake.Rows(record.DomainDocuments)) != 1 {
		t.Error("doc-1 still on remote after delete")
	}
}

func TestIncrementDownloads(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	seedCatalog(fake)
	ctx := context.Background()

	if _, err := cat.Documents(ctx); err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}
	if err := cat.IncrementDownloads(ctx, "doc-1"); err != nil {
		t.Fatalf("IncrementDownloads() failed: %v", err)
	}

	got, err := cat.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Downloads != 4 {
		t.Errorf("downloads = %d, want 4", got.Downloads)
	}

	if len(fake.Written) != 1 {
		t.Fatalf("remote writes = %+v, want one patch", fake.Written)
	}
	if n, ok := fake.Written[0].Fields["downloads"].(int); !ok || n != 4 {
		t.Errorf("patched downloads = %v, want 4", fake.Written[0].Fields["downloads"])
	}
}

func TestRateUpdatesRemoteAndCache(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	seedCatalog(fake)
	ctx := context.Background()

	if _, err := cat.Documents(ctx); err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}

	fake.WriteErr = remote.ErrNetwork
	if err := cat.Rate(ctx, "doc-1", 3.0); !remote.IsNetwork(err) {
		t.Fatalf("Rate() offline error = %v, want network failure", err)
	}
	got, _ := cat.Get(ctx, "doc-1")
	if got.Rating != 4.5 {
		t.Errorf("rating = %v after failed rate, want unchanged 4.5", got.Rating)
	}

	fake.WriteErr = nil
	if err := cat.Rate(ctx, "doc-1", 3.0); err != nil {
		t.Fatalf("Rate() failed: %v", err)
	}
	got, _ = cat.Get(ctx, "doc-1")
	if got.Rating != 3.0 {
		t.Errorf("rating = %v, want 3.0", got.Rating)
	}
}

func TestWatchSignalsOnRefresh(t *testing.T) {
	cat, fake, _, _ := setupCatalog(t)
	seedCatalog(fake)

	ch, cancel := cat.Watch()
	defer cancel()

	if err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal after refresh")
	}
}
