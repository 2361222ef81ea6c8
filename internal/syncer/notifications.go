package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/remote"
	"github.com/docshare/docsync/internal/store"
)

// Notifications keeps the feed for the bound identity live through
// realtime channels instead of TTL polling. It implements the session
// Binder contract: Bind opens the identity's channels, Unbind tears
// them down, and an identity switch rebinds.
type Notifications struct {
	db     *store.DB
	remote remote.Store
	logger *log.Logger
	sink   EventSink

	mu     sync.Mutex
	viewer string
	gen    int
	subs   []*remote.Subscription
}

// NewNotifications creates an unbound notifications coordinator.
func NewNotifications(db *store.DB, rs remote.Store, opts Options) *Notifications {
	opts = opts.withDefaults("[notifications] ", 0)
	return &Notifications{
		db:     db,
		remote: rs,
		logger: opts.Logger,
		sink:   opts.Events,
	}
}

// Bind opens realtime channels for the identity: one for rows addressed
// to it, one for broadcasts. Binding the already-bound identity is a
// no-op. If a different identity is bound, its channels are cancelled
// before the new ones open, so snapshots for two identities never race.
func (n *Notifications) Bind(ctx context.Context, identity record.Identity) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.viewer == identity.ID && len(n.subs) > 0 {
		return nil
	}
	n.teardownLocked()

	n.gen++
	gen := n.gen
	viewer := identity.ID

	for _, owner := range []string{viewer, record.BroadcastOwner} {
		sub, err := n.remote.Subscribe(ctx, record.DomainNotifications, remote.Filter{Owner: owner},
			func(records []remote.Record) {
				n.ingest(gen, viewer, records)
			})
		if err != nil {
			n.teardownLocked()
			return fmt.Errorf("failed to open %s channel for %s: %w", owner, viewer, err)
		}
		n.subs = append(n.subs, sub)
	}

	n.viewer = viewer
	n.logger.Printf("bound notification channels for %s", viewer)
	emit(n.sink, EventIdentityRebound, record.DomainNotifications, len(n.subs), viewer)
	return nil
}

// Unbind cancels the bound identity's channels. Safe to call when
// nothing is bound.
func (n *Notifications) Unbind() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teardownLocked()
}

// teardownLocked cancels open channels and bumps the generation so any
// push already in flight from an old channel is dropped on arrival.
func (n *Notifications) teardownLocked() {
	if len(n.subs) == 0 && n.viewer == "" {
		return
	}
	for _, sub := range n.subs {
		sub.Cancel()
	}
	n.subs = nil
	n.viewer = ""
	n.gen++
}

// ingest merges one pushed snapshot into the cache. Rows are upserted
// individually: the personal and broadcast channels each cover only
// their own partition of the feed, so a full replace would clobber the
// other channel's rows.
func (n *Notifications) ingest(gen int, viewer string, records []remote.Record) {
	n.mu.Lock()
	stale := gen != n.gen
	n.mu.Unlock()
	if stale {
		return
	}

	ctx := context.Background()
	merged := 0
	for _, rec := range records {
		notif, err := record.DecodeNotification(rec.ID, rec.Fields, viewer)
		if err != nil {
			n.logger.Printf("WARNING: skipping malformed notification %s: %v", rec.ID, err)
			continue
		}
		if err := n.db.UpsertNotification(ctx, notif); err != nil {
			n.logger.Printf("failed to cache notification %s: %v", notif.ID, err)
			continue
		}
		merged++
	}

	if merged > 0 {
		emit(n.sink, EventPushMerged, record.DomainNotifications, merged, viewer)
	}
}

// List returns the bound identity's cached feed, newest first. Broadcast
// copies appear alongside personal rows; both live in the viewer's
// partition.
func (n *Notifications) List(ctx context.Context) ([]*record.Notification, error) {
	viewer, err := n.boundViewer()
	if err != nil {
		return nil, err
	}
	return n.db.NotificationsForOwner(ctx, viewer)
}

// Unread returns the bound identity's unread count.
func (n *Notifications) Unread(ctx context.Context) (int, error) {
	viewer, err := n.boundViewer()
	if err != nil {
		return 0, err
	}
	return n.db.UnreadCount(ctx, viewer)
}

// Watch returns a channel that signals after the cached feed changes,
// plus a cancel func.
func (n *Notifications) Watch() (<-chan struct{}, func()) {
	return n.db.Watch(record.DomainNotifications)
}

// MarkRead marks a cached notification read. The local row updates
// first so the UI settles immediately. Personal rows also patch the
// remote copy; broadcast rows stay local-only, since the shared remote
// row cannot carry per-viewer read state. A failed remote patch is
// returned but the local mark stands.
func (n *Notifications) MarkRead(ctx context.Context, id string) error {
	notif, err := n.db.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if notif == nil {
		return fmt.Errorf("notification %s is not cached", id)
	}

	if !notif.IsRead {
		notif.IsRead = true
		if err := n.db.UpsertNotification(ctx, notif); err != nil {
			return err
		}
	}

	if notif.Broadcast {
		return nil
	}
	if err := n.remote.UpdateFields(ctx, record.DomainNotifications, notif.RemoteID, map[string]any{"is_read": true}); err != nil {
		return fmt.Errorf("failed to sync read state for %s: %w", id, err)
	}
	return nil
}

func (n *Notifications) boundViewer() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.viewer == "" {
		return "", fmt.Errorf("no identity bound")
	}
	return n.viewer, nil
}
