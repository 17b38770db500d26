package chat

import (
	"log/slog"
	"sync"

	v1 "ripple/shared/contracts/chat/v1"
)

// Room is the in-memory fanout primitive for one conversation. Both
// participants' connections join it so a sender's other open tabs see the
// broadcast too.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Room struct {
	log *slog.Logger
	ID  string

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs a conversation room.
func NewRoom(log *slog.Logger, id string) *Room {
	return &Room{
		log:     log,
		ID:      id,
		members: make(map[string]*Client),
	}
}

// Join adds a client to membership.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.ConnectionID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.ConnectionID] = client
	r.mu.Unlock()

	r.log.Debug("room.member.join", "conversation_id", r.ID, "connection_id", client.ConnectionID)
}

// Leave removes a client from membership. Unlike the client's own shutdown,
// leaving a room does not close the client: a connection joins and leaves
// rooms over its lifetime.
func (r *Room) Leave(connectionID string) {
	if r == nil || connectionID == "" {
		return
	}

	r.mu.Lock()
	delete(r.members, connectionID)
	r.mu.Unlock()

	r.log.Debug("room.member.leave", "conversation_id", r.ID, "connection_id", connectionID)
}

// Len returns the current member count.
func (r *Room) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Broadcast fanouts an envelope to all members.
// Non-blocking: if a member queue is full or the client is shutting down, it is dropped.
func (r *Room) Broadcast(env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if !m.TryEnqueue(env) {
			// Drop rather than block the whole room.
			continue
		}
	}
}
