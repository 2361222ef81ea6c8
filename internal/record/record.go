// Package record defines the domain records cached by docsync and the
// typed decode step that turns loosely-typed remote rows into them.
//
// Remote rows arrive as id + field map. Each domain has a Decode function
// that validates the row, substitutes documented defaults for missing
// optional fields, and returns a *DecodeError for rows that cannot be
// ingested at all. Defaults are applied exactly once, at ingestion; they
// are never re-derived later.
package record

import "fmt"

// Domain identifies one synchronized table set.
type Domain string

const (
	// DomainDocuments is the shared document catalog.
	DomainDocuments Domain = "documents"
	// DomainNotifications is the per-identity notification feed.
	DomainNotifications Domain = "notifications"
	// DomainLeaderboard is the contribution leaderboard.
	DomainLeaderboard Domain = "leaderboard"
)

// BroadcastOwner is the sentinel owner value the remote store uses for
// notifications addressed to every identity. Rows carrying it are fanned
// out locally with the owner rewritten to the viewing identity.
const BroadcastOwner = "everyone"

// DecodeError reports a remote row that could not be turned into a typed
// record. The row is skipped; ingestion continues with the rest.
type DecodeError struct {
	Domain Domain
	ID     string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s row %q: field %q: %s", e.Domain, e.ID, e.Field, e.Reason)
}

// StringField reads a string field from a remote row.
// Returns ("", false) when the field is absent or not a string.
func StringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NumberField reads a numeric field from a remote row.
// JSON decoding produces float64 for all numbers; integer values that
// survived transport as int are accepted too.
func NumberField(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// BoolField reads a boolean field from a remote row.
func BoolField(fields map[string]any, key string) (bool, bool) {
	v, ok := fields[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
