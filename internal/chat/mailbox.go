package chat

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MissedMessage is the per-recipient mailbox entry for a message that was
// persisted while the recipient had zero live connections.
type MissedMessage struct {
	RecipientID    string    `json:"recipientId"`
	MessageID      string    `json:"messageId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName,omitempty"`
	ConversationID string    `json:"conversationId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Mailbox is the advisory queue of missed messages per recipient.
//
// Mailbox contents are best-effort: the durable isRead flags on messages are
// the authority after a restart. Acknowledge is the ONLY operation that
// clears a queue; reconnect alone never does, because the user must see the
// notification first.
type Mailbox interface {
	// Enqueue appends an entry and returns the recipient's new queue length.
	Enqueue(ctx context.Context, m MissedMessage) (int, error)

	// Retrieve is a non-destructive read of the recipient's queue.
	Retrieve(ctx context.Context, recipientID string) ([]MissedMessage, error)

	// Acknowledge clears the recipient's queue.
	Acknowledge(ctx context.Context, recipientID string) error

	// Count returns the recipient's queue length.
	Count(ctx context.Context, recipientID string) (int, error)
}

// MemoryMailbox is the default single-process Mailbox, reset on restart.
type MemoryMailbox struct {
	mu     sync.Mutex
	queues map[string][]MissedMessage
}

// NewMemoryMailbox constructs an empty in-memory mailbox.
func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{queues: make(map[string][]MissedMessage)}
}

// Enqueue appends to the recipient's queue and returns its new length.
func (mb *MemoryMailbox) Enqueue(_ context.Context, m MissedMessage) (int, error) {
	if m.RecipientID == "" {
		return 0, &ValidationError{Field: "recipientId", Reason: "empty user id"}
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	q := append(mb.queues[m.RecipientID], m)
	mb.queues[m.RecipientID] = q
	return len(q), nil
}

// Retrieve returns a copy of the recipient's queue without clearing it.
func (mb *MemoryMailbox) Retrieve(_ context.Context, recipientID string) ([]MissedMessage, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	q := mb.queues[recipientID]
	if len(q) == 0 {
		return nil, nil
	}
	out := make([]MissedMessage, len(q))
	copy(out, q)
	return out, nil
}

// Acknowledge clears the recipient's queue.
func (mb *MemoryMailbox) Acknowledge(_ context.Context, recipientID string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	delete(mb.queues, recipientID)
	return nil
}

// Count returns the recipient's queue length.
func (mb *MemoryMailbox) Count(_ context.Context, recipientID string) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queues[recipientID]), nil
}

// MissedSummary is the grouped-by-sender reconnect notification shape:
// count and latest content per sender.
type MissedSummary struct {
	SenderID       string
	SenderName     string
	ConversationID string
	Count          int
	Latest         string
	LatestAt       time.Time
}

// SummarizeBySender groups mailbox entries per sender, keeping the latest
// content for each. Output is ordered by most recent sender first so the
// freshest conversation tops the notification list.
func SummarizeBySender(entries []MissedMessage) []MissedSummary {
	if len(entries) == 0 {
		return nil
	}

	byID := make(map[string]*MissedSummary)
	order := make([]string, 0, 4)

	for _, e := range entries {
		s, ok := byID[e.SenderID]
		if !ok {
			s = &MissedSummary{
				SenderID:       e.SenderID,
				SenderName:     e.SenderName,
				ConversationID: e.ConversationID,
			}
			byID[e.SenderID] = s
			order = append(order, e.SenderID)
		}
		s.Count++
		if !e.CreatedAt.Before(s.LatestAt) {
			s.Latest = e.Content
			s.LatestAt = e.CreatedAt
			if e.SenderName != "" {
				s.SenderName = e.SenderName
			}
		}
	}

	out := make([]MissedSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LatestAt.After(out[j].LatestAt) })
	return out
}

// CountsByConversation folds mailbox entries into per-conversation totals.
func CountsByConversation(entries []MissedMessage) map[string]int {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]int, 4)
	for _, e := range entries {
		out[e.ConversationID]++
	}
	return out
}
