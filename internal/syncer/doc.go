// Package syncer provides the per-domain coordinators that keep the
// local cache aligned with the remote document service.
//
// Overview
//
// Each domain gets its own coordinator with the sync posture that fits
// its data:
//
//	Remote service (write authority)
//	     ├── documents      → Catalog        (TTL refresh, 15m)
//	     ├── leaderboard    → Leaderboard    (TTL refresh, 1m)
//	     └── notifications  → Notifications  (realtime channels)
//	                                ↓
//	                           Local cache
//	                           (read source of truth)
//
// Reads always serve the local cache. The TTL coordinators check the
// domain's last successful refresh before a read and pull a fresh
// snapshot when it has gone stale; the notifications coordinator holds
// realtime channels open instead and merges every push as it arrives.
//
// Error Handling
//
// Background refreshes never break reads:
//
//   - Remote failures during refresh-if-stale are logged and the read
//     proceeds from cache
//   - Explicit Refresh and all writes surface remote errors to the
//     caller
//   - Local store errors are always returned; a broken cache cannot be
//     papered over
//   - Malformed remote rows are logged and skipped, never poisoning a
//     snapshot
//
// Concurrency
//
// Coordinators are safe for concurrent use. Snapshot installs go
// through a single-writer transaction, so readers see either the old
// set or the new set, never an empty gap. Concurrent refreshes of the
// same domain are serialized; the refresh timestamp only advances after
// a snapshot lands.
package syncer
