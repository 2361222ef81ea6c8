package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/remote"
	"github.com/docshare/docsync/internal/staleness"
	"github.com/docshare/docsync/internal/store"
)

// Leaderboard keeps the points ranking cached locally. Rankings churn
// quickly, so the TTL is short; the cache still serves whatever it has
// when the service is unreachable.
type Leaderboard struct {
	db     *store.DB
	remote remote.Store
	clock  staleness.Clock
	ttl    time.Duration
	logger *log.Logger
	sink   EventSink

	refreshMu sync.Mutex
}

// NewLeaderboard creates a leaderboard coordinator.
func NewLeaderboard(db *store.DB, rs remote.Store, opts Options) *Leaderboard {
	opts = opts.withDefaults("[leaderboard] ", staleness.DefaultLeaderboardTTL)
	return &Leaderboard{
		db:     db,
		remote: rs,
		clock:  opts.Clock,
		ttl:    opts.TTL,
		logger: opts.Logger,
		sink:   opts.Events,
	}
}

// Top returns the highest-ranked cached entries, refreshing first when
// the cache has gone stale. limit <= 0 returns every entry.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]*record.LeaderboardEntry, error) {
	if err := l.RefreshIfStale(ctx); err != nil {
		return nil, err
	}
	return l.db.TopEntries(ctx, limit)
}

// Watch returns a channel that signals after the cached ranking
// changes, plus a cancel func.
func (l *Leaderboard) Watch() (<-chan struct{}, func()) {
	return l.db.Watch(record.DomainLeaderboard)
}

// RefreshIfStale pulls a fresh ranking when the cache is older than the
// TTL. Remote failures are swallowed; only local store errors are
// returned.
func (l *Leaderboard) RefreshIfStale(ctx context.Context) error {
	last, err := l.db.LastRefresh(ctx, record.DomainLeaderboard, "")
	if err != nil {
		return err
	}
	if !staleness.IsStale(last, l.clock.Now(), l.ttl) {
		return nil
	}

	if err := l.Refresh(ctx); err != nil {
		if errors.Is(err, store.ErrStorage) {
			return err
		}
		l.logger.Printf("leaderboard refresh failed, serving cache: %v", err)
		emit(l.sink, EventRefreshFailed, record.DomainLeaderboard, 0, err.Error())
	}
	return nil
}

// Refresh pulls the full ranking and installs it as the new cached set.
// Display names are resolved at ingestion so list rendering never has
// to fall back per row.
func (l *Leaderboard) Refresh(ctx context.Context) error {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	records, err := l.remote.FetchAll(ctx, record.DomainLeaderboard, remote.Filter{})
	if err != nil {
		return fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	entries := make([]*record.LeaderboardEntry, 0, len(records))
	for _, rec := range records {
		entry, err := record.DecodeLeaderboardEntry(rec.ID, rec.Fields)
		if err != nil {
			l.logger.Printf("WARNING: skipping malformed leaderboard row %s: %v", rec.ID, err)
			continue
		}
		entries = append(entries, entry)
	}

	if err := l.db.ReplaceAllLeaderboard(ctx, entries); err != nil {
		return err
	}
	if err := l.db.SetLastRefresh(ctx, record.DomainLeaderboard, "", l.clock.Now()); err != nil {
		return err
	}

	l.logger.Printf("leaderboard refreshed: %d entries (%d skipped)", len(entries), len(records)-len(entries))
	emit(l.sink, EventRefreshComplete, record.DomainLeaderboard, len(entries), "")
	return nil
}
