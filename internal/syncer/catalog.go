package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/remote"
	"github.com/docshare/docsync/internal/staleness"
	"github.com/docshare/docsync/internal/store"
)

// Options configures a coordinator. The zero value uses the domain's
// default TTL, the wall clock, a stderr logger, and no event sink.
type Options struct {
	TTL    time.Duration
	Clock  staleness.Clock
	Logger *log.Logger
	Events EventSink
}

func (o Options) withDefaults(prefix string, ttl time.Duration) Options {
	if o.TTL == 0 {
		o.TTL = ttl
	}
	if o.Clock == nil {
		o.Clock = staleness.RealClock{}
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stderr, prefix, log.LstdFlags)
	}
	return o
}

// Catalog keeps the shared document catalog cached locally and pushes
// user edits to the remote service.
type Catalog struct {
	db     *store.DB
	remote remote.Store
	clock  staleness.Clock
	ttl    time.Duration
	logger *log.Logger
	sink   EventSink

	// Serializes snapshot installs so concurrent refreshes cannot
	// interleave their write phases.
	refreshMu sync.Mutex
}

// NewCatalog creates a catalog coordinator.
func NewCatalog(db *store.DB, rs remote.Store, opts Options) *Catalog {
	opts = opts.withDefaults("[catalog] ", staleness.DefaultCatalogTTL)
	return &Catalog{
		db:     db,
		remote: rs,
		clock:  opts.Clock,
		ttl:    opts.TTL,
		logger: opts.Logger,
		sink:   opts.Events,
	}
}

// Documents returns the cached catalog, pulling a fresh snapshot first
// when the cache has gone stale. A remote failure during the pull is
// logged and the cached rows are served unchanged.
func (c *Catalog) Documents(ctx context.Context) ([]*record.Document, error) {
	if err := c.RefreshIfStale(ctx); err != nil {
		return nil, err
	}
	return c.db.Documents(ctx)
}

// Search returns cached documents matching the query and optional type
// filter, refreshing first when stale. Matching runs against the local
// cache, so search works offline.
func (c *Catalog) Search(ctx context.Context, query string, typ record.DocType) ([]*record.Document, error) {
	if err := c.RefreshIfStale(ctx); err != nil {
		return nil, err
	}
	return c.db.SearchDocuments(ctx, query, typ)
}

// Get returns one cached document, or nil when it is not cached.
func (c *Catalog) Get(ctx context.Context, id string) (*record.Document, error) {
	return c.db.GetDocument(ctx, id)
}

// Watch returns a channel that signals after the cached catalog
// changes, plus a cancel func.
func (c *Catalog) Watch() (<-chan struct{}, func()) {
	return c.db.Watch(record.DomainDocuments)
}

// RefreshIfStale pulls a fresh snapshot when the cache is older than
// the TTL. Remote failures are swallowed so the caller can keep serving
// the cache; only local store errors are returned.
func (c *Catalog) RefreshIfStale(ctx context.Context) error {
	last, err := c.db.LastRefresh(ctx, record.DomainDocuments, "")
	if err != nil {
		return err
	}
	if !staleness.IsStale(last, c.clock.Now(), c.ttl) {
		return nil
	}

	if err := c.Refresh(ctx); err != nil {
		if errors.Is(err, store.ErrStorage) {
			return err
		}
		c.logger.Printf("catalog refresh failed, serving cache: %v", err)
		emit(c.sink, EventRefreshFailed, record.DomainDocuments, 0, err.Error())
	}
	return nil
}

// Refresh pulls the full catalog and installs it as the new cached set.
// The refresh timestamp only advances after the snapshot lands, so a
// failed pull leaves the cache due for another attempt.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	records, err := c.remote.FetchAll(ctx, record.DomainDocuments, remote.Filter{})
	if err != nil {
		return fmt.Errorf("failed to fetch catalog: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	docs := make([]*record.Document, 0, len(records))
	for _, rec := range records {
		doc, err := record.DecodeDocument(rec.ID, rec.Fields)
		if err != nil {
			c.logger.Printf("WARNING: skipping malformed document %s: %v", rec.ID, err)
			continue
		}
		docs = append(docs, doc)
	}

	if err := c.db.ReplaceAllDocuments(ctx, docs); err != nil {
		return err
	}
	if err := c.db.SetLastRefresh(ctx, record.DomainDocuments, "", c.clock.Now()); err != nil {
		return err
	}

	c.logger.Printf("catalog refreshed: %d documents (%d skipped)", len(docs), len(records)-len(docs))
	emit(c.sink, EventRefreshComplete, record.DomainDocuments, len(docs), "")
	return nil
}

// Upload publishes a document and caches it locally. The remote write
// lands first; a rejected or unreachable write leaves the cache
// untouched.
func (c *Catalog) Upload(ctx context.Context, doc *record.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = c.clock.Now().UTC()
	}

	if err := c.remote.Write(ctx, record.DomainDocuments, remote.Record{ID: doc.ID, Fields: doc.Fields()}); err != nil {
		return fmt.Errorf("failed to publish document %s: %w", doc.ID, err)
	}
	if err := c.db.UpsertDocument(ctx, doc); err != nil {
		return err
	}

	c.logger.Printf("uploaded document %s (%s)", doc.ID, doc.Title)
	return nil
}

// Delete removes a document remotely, then from the cache.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.remote.Delete(ctx, record.DomainDocuments, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if err := c.db.DeleteDocument(ctx, id); err != nil {
		return err
	}

	c.logger.Printf("deleted document %s", id)
	return nil
}

// IncrementDownloads bumps a document's download counter remotely and
// in the cache. The counter is read from the cache and written back
// without a round-trip lock; concurrent bumps resolve last-write-wins.
func (c *Catalog) IncrementDownloads(ctx context.Context, id string) error {
	doc, err := c.db.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s is not cached", id)
	}

	next := doc.Downloads + 1
	if err := c.remote.UpdateFields(ctx, record.DomainDocuments, id, map[string]any{"downloads": next}); err != nil {
		return fmt.Errorf("failed to record download of %s: %w", id, err)
	}

	doc.Downloads = next
	return c.db.UpsertDocument(ctx, doc)
}

// Rate sets a document's aggregate rating remotely and in the cache.
func (c *Catalog) Rate(ctx context.Context, id string, rating float64) error {
	doc, err := c.db.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s is not cached", id)
	}

	if err := c.remote.UpdateFields(ctx, record.DomainDocuments, id, map[string]any{"rating": rating}); err != nil {
		return fmt.Errorf("failed to rate %s: %w", id, err)
	}

	doc.Rating = rating
	return c.db.UpsertDocument(ctx, doc)
}
