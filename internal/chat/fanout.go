package chat

import (
	"log/slog"
	"time"

	v1 "ripple/shared/contracts/chat/v1"
)

// Fanout pushes presence changes and missed-message-count updates to live
// connections. Ordering is preserved per subject because each emission walks
// a consistent snapshot and every connection queue is FIFO; no ordering is
// guaranteed across different subjects' events.
type Fanout struct {
	log      *slog.Logger
	presence *Presence
}

// NewFanout constructs a Fanout over the given presence registry.
func NewFanout(log *slog.Logger, presence *Presence) *Fanout {
	return &Fanout{log: log, presence: presence}
}

// PresenceChanged broadcasts user_online/user_offline to every live
// connection except the subject's own.
func (f *Fanout) PresenceChanged(userID string, online bool, now time.Time) {
	typ := v1.TypeUserOffline
	if online {
		typ = v1.TypeUserOnline
	}

	env := newEnvelope(typ, v1.PresencePayload{UserID: userID, Timestamp: now}, now)

	dropped := 0
	for _, c := range f.presence.AllExcept(userID) {
		if !c.TryEnqueue(env) {
			dropped++
		}
	}

	f.log.Info("fanout.presence", "user_id", userID, "online", online, "dropped", dropped)
}

// MissedCount pushes the subject's missed-message badge to all of their own
// connections, with the per-conversation breakdown. Total is derived from the
// breakdown so any one client observes monotonic per-conversation counts.
func (f *Fanout) MissedCount(userID string, counts map[string]int, now time.Time) {
	total := 0
	for _, n := range counts {
		total += n
	}

	env := newEnvelope(v1.TypeMissedCountUpdated, v1.MissedCountUpdatedPayload{
		UserID:             userID,
		MissedMessageCount: total,
		ConversationCounts: counts,
	}, now)

	for _, c := range f.presence.ConnectionsFor(userID) {
		if !c.TryEnqueue(env) {
			f.log.Debug("fanout.missed_count.drop", "user_id", userID, "connection_id", c.ConnectionID)
		}
	}
}
