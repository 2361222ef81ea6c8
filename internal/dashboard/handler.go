package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/docshare/docsync/internal/session"
	"github.com/docshare/docsync/internal/store"
	"github.com/docshare/docsync/internal/syncer"
)

// Handler bridges coordinator events and cache state to the WebSocket
// server.
type Handler struct {
	server  *Server
	db      *store.DB
	session *session.Manager
	logger  *log.Logger
}

// NewHandler creates an event handler connected to a dashboard server.
// db and sessions may be nil; stats then omit what they would supply.
func NewHandler(server *Server, db *store.DB, sessions *session.Manager, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server:  server,
		db:      db,
		session: sessions,
		logger:  logger,
	}
}

// Sink returns the event sink coordinators should emit into. Every
// event is broadcast, and events that change cache contents trigger a
// stats broadcast too.
func (h *Handler) Sink() syncer.EventSink {
	return func(e syncer.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			h.logger.Printf("Failed to marshal event: %v", err)
			return
		}

		h.server.Broadcast(Message{
			Type:      MessageTypeSyncEvent,
			Timestamp: e.Time,
			Data:      data,
		})

		switch e.Kind {
		case syncer.EventRefreshComplete, syncer.EventPushMerged:
			h.BroadcastStats()
		}
	}
}

// BroadcastStats reads the cache counters and broadcasts them.
func (h *Handler) BroadcastStats() {
	stats := h.collectStats()

	data, err := json.Marshal(stats)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (h *Handler) collectStats() StatsData {
	stats := StatsData{Clients: h.server.ClientCount()}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var err error
		if stats.Documents, err = h.db.CountDocuments(ctx); err != nil {
			h.logger.Printf("Failed to count documents: %v", err)
		}
		if stats.Notifications, err = h.db.CountNotifications(ctx); err != nil {
			h.logger.Printf("Failed to count notifications: %v", err)
		}
		if stats.Leaderboard, err = h.db.CountLeaderboardEntries(ctx); err != nil {
			h.logger.Printf("Failed to count leaderboard entries: %v", err)
		}
	}

	if h.session != nil {
		if active := h.session.Active(); active != nil {
			stats.ActiveIdentity = active.ID
		}
	}

	return stats
}
