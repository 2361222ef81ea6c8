// Package remote wraps access to the authoritative cloud document
// database: one-shot fetches, writes, best-effort batches, and realtime
// push subscriptions.
//
// Rows cross the wire loosely typed (id + field map); the typed decode
// into domain records happens in internal/record at ingestion. Errors
// follow a fixed taxonomy — ErrNetwork for connectivity, *ServiceError
// for remote rejections, *PartialBatchError for batches whose final state
// is unknown — so coordinators can apply the right propagation policy.
package remote

import (
	"context"
	"sync"

	"github.com/docshare/docsync/internal/record"
)

// Record is one loosely-typed remote row.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Op is one entry in a batched write. A nil/empty Fields map with Delete
// set removes the row; otherwise Fields are merged into it server-side.
type Op struct {
	Domain record.Domain  `json:"domain"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields,omitempty"`
	Delete bool           `json:"delete,omitempty"`
}

// Filter is the server-side predicate for fetches and subscriptions.
// An empty filter matches the whole domain.
type Filter struct {
	Owner string
}

// SnapshotHandler receives realtime pushes. Each call delivers the
// current full matching set for the subscription's filter; handlers merge
// row by row and never clear the table from a push.
type SnapshotHandler func(records []Record)

// Store is the remote database surface the sync coordinators talk to.
type Store interface {
	// FetchAll returns every row of the domain matching the filter.
	FetchAll(ctx context.Context, domain record.Domain, f Filter) ([]Record, error)

	// Write creates or fully replaces one row.
	Write(ctx context.Context, domain record.Domain, rec Record) error

	// UpdateFields updates individual fields of one row without
	// rewriting the rest of it.
	UpdateFields(ctx context.Context, domain record.Domain, id string, fields map[string]any) error

	// Delete removes one row. Idempotent on the remote side.
	Delete(ctx context.Context, domain record.Domain, id string) error

	// BatchWrite applies ops as a single best-effort batch. The remote
	// backend does not guarantee atomicity: on *PartialBatchError some
	// ops may have applied and the final state is unknown. Callers
	// re-run the corresponding reconciliation pass instead of assuming
	// success or failure.
	BatchWrite(ctx context.Context, ops []Op) error

	// Subscribe opens a realtime channel for the domain and filter.
	// The handler runs on the subscription's own goroutine until the
	// returned handle is cancelled or the channel fails. ctx bounds
	// only the handshake, not the subscription lifetime; the handle
	// owns that.
	Subscribe(ctx context.Context, domain record.Domain, f Filter, h SnapshotHandler) (*Subscription, error)
}

// Subscription is the handle for one realtime channel.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps a teardown function into a handle.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel tears the channel down. Idempotent, and safe to call after the
// underlying channel already failed.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
