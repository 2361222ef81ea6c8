package record

import (
	"fmt"
	"time"
)

// Notification is a feed entry cached for exactly one viewing identity.
//
// The local and remote representations intentionally differ for broadcast
// rows: the remote store keeps a single row owned by BroadcastOwner, while
// each local cache stores its own copy with OwnerID rewritten to the
// viewer and the local ID suffixed with the viewer so copies for
// different identities never collide.
type Notification struct {
	ID        string    `json:"id"`
	RemoteID  string    `json:"remote_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	OwnerID   string    `json:"owner_id"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	RelatedID string    `json:"related_id,omitempty"`
	Broadcast bool      `json:"broadcast"`
}

// Validate checks the fields required before a notification is stored.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if n.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if n.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// DecodeNotification turns a remote notification row into the local
// representation for the given viewer.
//
// Rows owned by BroadcastOwner are rewritten: OwnerID becomes the viewer
// and the local ID becomes "<remote id>:<viewer>". Personal rows keep
// their remote ID and owner. Rows owned by neither the viewer nor the
// broadcast sentinel are rejected; the server-side filter should never
// deliver them, and silently caching another identity's rows would leak
// them into the viewer's partition.
//
// Defaults: missing message becomes "", missing type becomes "general",
// missing is_read becomes false, missing timestamp becomes the zero time.
func DecodeNotification(id string, fields map[string]any, viewer string) (*Notification, error) {
	if id == "" {
		return nil, &DecodeError{Domain: DomainNotifications, Field: "id", Reason: "empty"}
	}
	if viewer == "" {
		return nil, &DecodeError{Domain: DomainNotifications, ID: id, Field: "owner_id", Reason: "no viewer identity"}
	}

	title, ok := StringField(fields, "title")
	if !ok || title == "" {
		return nil, &DecodeError{Domain: DomainNotifications, ID: id, Field: "title", Reason: "missing"}
	}

	owner, _ := StringField(fields, "owner_id")
	broadcast := owner == BroadcastOwner
	if !broadcast && owner != viewer {
		return nil, &DecodeError{Domain: DomainNotifications, ID: id, Field: "owner_id", Reason: fmt.Sprintf("owned by %q, not the viewer", owner)}
	}

	localID := id
	if broadcast {
		localID = id + ":" + viewer
	}

	message, _ := StringField(fields, "message")
	typ, ok := StringField(fields, "type")
	if !ok || typ == "" {
		typ = "general"
	}
	isRead, _ := BoolField(fields, "is_read")
	related, _ := StringField(fields, "related_id")

	var ts time.Time
	if s, ok := StringField(fields, "timestamp"); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			ts = t
		}
	}

	return &Notification{
		ID:        localID,
		RemoteID:  id,
		Title:     title,
		Message:   message,
		Timestamp: ts,
		OwnerID:   viewer,
		Type:      typ,
		IsRead:    isRead,
		RelatedID: related,
		Broadcast: broadcast,
	}, nil
}
