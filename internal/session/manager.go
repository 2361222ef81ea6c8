// Package session tracks the signed-in identity and rebinds
// identity-scoped consumers when it changes.
//
// Consumers register as Binders. A switch tears every binder down for
// the old identity before any binder comes up for the new one, so two
// identities never hold live realtime channels at the same time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/store"
)

// Binder is an identity-scoped consumer, typically a sync coordinator
// holding realtime subscriptions.
//
// Bind must be idempotent for the same identity: rebinding an already
// bound identity is a no-op. Unbind must be safe to call when nothing
// is bound.
type Binder interface {
	Bind(ctx context.Context, identity record.Identity) error
	Unbind()
}

// Manager owns the active identity and the set of registered binders.
type Manager struct {
	db     *store.DB
	logger *log.Logger

	mu      sync.Mutex
	binders []Binder
	active  *record.Identity
}

// NewManager creates a manager with no active identity. If logger is
// nil, a default logger writing to stderr is used.
func NewManager(db *store.DB, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	return &Manager{db: db, logger: logger}
}

// Register adds a binder. If an identity is already active, the binder
// is bound to it immediately.
func (m *Manager) Register(ctx context.Context, b Binder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.binders = append(m.binders, b)
	if m.active != nil {
		if err := b.Bind(ctx, *m.active); err != nil {
			return fmt.Errorf("failed to bind %s: %w", m.active.ID, err)
		}
	}
	return nil
}

// SignIn records the identity in the local store and switches every
// binder to it. Previously cached identities are kept; the account
// picker lists them via OtherIdentities.
func (m *Manager) SignIn(ctx context.Context, identity record.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	if identity.LastSignedIn.IsZero() {
		identity.LastSignedIn = time.Now().UTC()
	}
	if err := m.db.UpsertIdentity(ctx, &identity); err != nil {
		return err
	}
	return m.switchTo(ctx, &identity)
}

// SignOut unbinds every binder and clears the active identity. The
// local cache is left intact for the next sign-in.
func (m *Manager) SignOut() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return
	}
	m.logger.Printf("signing out %s", m.active.ID)
	m.unbindAllLocked()
	m.active = nil
}

// switchTo tears down bindings for the current identity, then binds the
// new one. Teardown completes before any new binding opens.
func (m *Manager) switchTo(ctx context.Context, identity *record.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.ID == identity.ID {
		m.active = identity
		return nil
	}

	if m.active != nil {
		m.logger.Printf("switching identity %s -> %s", m.active.ID, identity.ID)
		m.unbindAllLocked()
	} else {
		m.logger.Printf("binding identity %s", identity.ID)
	}
	m.active = identity

	var errs []error
	for _, b := range m.binders {
		if err := b.Bind(ctx, *identity); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to bind %s: %w", identity.ID, errors.Join(errs...))
	}
	return nil
}

func (m *Manager) unbindAllLocked() {
	for _, b := range m.binders {
		b.Unbind()
	}
}

// Active returns a copy of the active identity, or nil when signed out.
func (m *Manager) Active() *record.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	cp := *m.active
	return &cp
}

// OtherIdentities lists cached identities besides the active one, most
// recently signed in first. When signed out it lists all of them.
func (m *Manager) OtherIdentities(ctx context.Context) ([]*record.Identity, error) {
	m.mu.Lock()
	activeID := ""
	if m.active != nil {
		activeID = m.active.ID
	}
	m.mu.Unlock()

	return m.db.OtherIdentities(ctx, activeID)
}
