package chat

import (
	"log/slog"
	"sync"
)

// Hub owns in-memory conversation rooms and provides stable room handles.
// It is intentionally minimal: persistence lives behind Store.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]*Room),
	}
}

// Room returns a stable room handle for a conversation, creating it lazily.
func (h *Hub) Room(conversationID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[conversationID]; ok {
		return r
	}

	r := NewRoom(h.log, conversationID)
	h.rooms[conversationID] = r
	return r
}

// Lookup returns an existing room without creating one.
func (h *Hub) Lookup(conversationID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[conversationID]
	return r, ok
}
