package chat

import (
	"log/slog"
	"sync"

	"ripple/internal/metrics"
)

// Presence is the process-wide registry of live connections per user.
// A user is online iff their connection set is non-empty.
//
// It is constructor-injected state, not a package singleton, so instances can
// be tested in isolation and the backing could be swapped for a shared store
// when scaling horizontally.
type Presence struct {
	log *slog.Logger

	mu    sync.RWMutex
	users map[string]map[string]*Client // userID -> connectionID -> client
}

// NewPresence constructs an empty registry.
func NewPresence(log *slog.Logger) *Presence {
	return &Presence{
		log:   log,
		users: make(map[string]map[string]*Client),
	}
}

// Add registers a connection for client.UserID and reports whether this is
// the user's first live connection (transition to online). Presence events
// must fire once per transition, not per connection.
func (p *Presence) Add(client *Client) (wentOnline bool) {
	if client == nil || client.UserID == "" || client.ConnectionID == "" {
		return false
	}

	p.mu.Lock()
	conns := p.users[client.UserID]
	if conns == nil {
		conns = make(map[string]*Client)
		p.users[client.UserID] = conns
		wentOnline = true
	}
	conns[client.ConnectionID] = client
	p.mu.Unlock()

	metrics.WSConnections.Inc()
	if wentOnline {
		metrics.OnlineUsers.Inc()
	}

	p.log.Info("presence.add",
		"user_id", client.UserID,
		"connection_id", client.ConnectionID,
		"went_online", wentOnline,
	)
	return wentOnline
}

// Remove drops a connection and reports whether the user's connection set is
// now empty (transition to offline). Removing an unregistered connection is
// a no-op: disconnect events can arrive out of order.
func (p *Presence) Remove(userID, connectionID string) (wentOffline bool) {
	if userID == "" || connectionID == "" {
		return false
	}

	removed := false

	p.mu.Lock()
	if conns, ok := p.users[userID]; ok {
		if _, ok := conns[connectionID]; ok {
			delete(conns, connectionID)
			removed = true
		}
		if len(conns) == 0 {
			delete(p.users, userID)
			wentOffline = removed
		}
	}
	p.mu.Unlock()

	if removed {
		metrics.WSConnections.Dec()
	}
	if wentOffline {
		metrics.OnlineUsers.Dec()
	}

	if removed {
		p.log.Info("presence.remove",
			"user_id", userID,
			"connection_id", connectionID,
			"went_offline", wentOffline,
		)
	}
	return wentOffline
}

// IsOnline reports whether userID has at least one live connection.
func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users[userID]) > 0
}

// ConnectionsFor returns a snapshot of all live connections for userID,
// used to address every tab/device when delivering a message.
func (p *Presence) ConnectionsFor(userID string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := p.users[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// AllExcept returns a snapshot of every live connection not belonging to
// userID. Used by presence fanout, which excludes the subject's own tabs.
func (p *Presence) AllExcept(userID string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*Client
	for uid, conns := range p.users {
		if uid == userID {
			continue
		}
		for _, c := range conns {
			out = append(out, c)
		}
	}
	return out
}

// OnlineUsers returns a snapshot of user ids with live connections.
func (p *Presence) OnlineUsers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.users))
	for uid := range p.users {
		out = append(out, uid)
	}
	return out
}
