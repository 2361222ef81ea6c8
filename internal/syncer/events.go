package syncer

import (
	"time"

	"github.com/docshare/docsync/internal/record"
)

// EventKind classifies a coordinator event.
type EventKind string

const (
	// EventRefreshComplete fires after a snapshot refresh lands.
	EventRefreshComplete EventKind = "refresh_complete"
	// EventRefreshFailed fires when a background refresh is swallowed.
	EventRefreshFailed EventKind = "refresh_failed"
	// EventPushMerged fires after a realtime push is merged.
	EventPushMerged EventKind = "push_merged"
	// EventIdentityRebound fires after channels rebind to an identity.
	EventIdentityRebound EventKind = "identity_rebound"
)

// Event describes one coordinator action, for dashboards and logs.
type Event struct {
	Kind   EventKind     `json:"kind"`
	Domain record.Domain `json:"domain"`
	Count  int           `json:"count,omitempty"`
	Detail string        `json:"detail,omitempty"`
	Time   time.Time     `json:"time"`
}

// EventSink receives coordinator events. Implementations must not
// block; coordinators call sinks inline.
type EventSink func(Event)

// emit sends an event to the sink, if one is set.
func emit(sink EventSink, kind EventKind, domain record.Domain, count int, detail string) {
	if sink == nil {
		return
	}
	sink(Event{Kind: kind, Domain: domain, Count: count, Detail: detail, Time: time.Now().UTC()})
}
