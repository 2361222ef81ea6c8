package record

import "fmt"

// LeaderboardEntry is one user's standing. The entry ID is the user ID.
//
// DisplayName is resolved once at ingestion via ResolveDisplayName and
// never re-derived afterward, so a user who later adds an email keeps the
// name their cached entry was ingested with until the next refresh.
type LeaderboardEntry struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Points      int     `json:"points"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
}

// Validate checks the fields required before an entry is stored.
func (e *LeaderboardEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	if e.Points < 0 {
		return fmt.Errorf("points must not be negative (got %d)", e.Points)
	}
	return nil
}

// ResolveDisplayName picks a display name with fixed precedence:
// explicit name, then email, then phone, then a placeholder synthesized
// from the user ID.
func ResolveDisplayName(name, email, phone, id string) string {
	switch {
	case name != "":
		return name
	case email != "":
		return email
	case phone != "":
		return phone
	default:
		return PlaceholderName(id)
	}
}

// PlaceholderName returns the deterministic fallback display name for a
// user with no name, email, or phone on record.
func PlaceholderName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "user-" + short
}

// DecodeLeaderboardEntry turns a remote leaderboard row into an entry.
//
// Defaults: missing or negative points become 0; the display name is
// resolved from display_name, email, and phone in that order, falling
// back to the ID-based placeholder.
func DecodeLeaderboardEntry(id string, fields map[string]any) (*LeaderboardEntry, error) {
	if id == "" {
		return nil, &DecodeError{Domain: DomainLeaderboard, Field: "id", Reason: "empty"}
	}

	name, _ := StringField(fields, "display_name")
	email, _ := StringField(fields, "email")
	phone, _ := StringField(fields, "phone")
	avatar, _ := StringField(fields, "avatar_url")

	points, _ := NumberField(fields, "points")
	if points < 0 {
		points = 0
	}

	return &LeaderboardEntry{
		ID:          id,
		DisplayName: ResolveDisplayName(name, email, phone, id),
		Points:      int(points),
		AvatarURL:   avatar,
	}, nil
}
