package record

import (
	"fmt"
	"time"
)

// Identity is a previously-authenticated session retained for quick
// account switching. Identities are upserted on every successful sign-in
// and never automatically deleted, so the cache accumulates every account
// that has signed in on this device.
type Identity struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	LastSignedIn time.Time `json:"last_signed_in"`
}

// Validate checks the fields required before an identity is cached.
func (i *Identity) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}
