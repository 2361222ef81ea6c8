// Package staleness decides whether a cached domain is old enough to
// warrant a background refresh.
//
// The policy is a pure function of the last successful refresh time; it
// never blocks and never fetches. Coordinators consult it before serving
// reads that opted into refresh-if-stale semantics, then schedule the
// refresh themselves. The stale check and the refresh-triggered timestamp
// write are deliberately not wrapped in one lock: duplicate concurrent
// refreshes are tolerated because both land via replaceAll and
// last-write-wins.
package staleness

import "time"

// Default TTLs per domain. Notifications carry no TTL: they are kept
// live by a realtime subscription instead of polling.
const (
	DefaultCatalogTTL     = 15 * time.Minute
	DefaultLeaderboardTTL = time.Minute
)

// Clock abstracts time retrieval so refresh decisions are deterministic
// in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IsStale reports whether a domain refreshed at lastRefresh needs a new
// fetch at now, given its TTL.
//
// A zero lastRefresh means the domain has never been refreshed and is
// always stale, forcing the first-run fetch. A non-positive ttl means
// the domain never goes fresh by age alone.
func IsStale(lastRefresh, now time.Time, ttl time.Duration) bool {
	if lastRefresh.IsZero() {
		return true
	}
	if ttl <= 0 {
		return true
	}
	return now.Sub(lastRefresh) >= ttl
}
