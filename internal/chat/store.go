package chat

import (
	"context"
	"time"
)

// Conversation is the durable record for an unordered participant pair.
// Participants are stored sorted so the pair has one canonical identity.
type Conversation struct {
	ID           string
	ParticipantA string
	ParticipantB string
	CreatedAt    time.Time
}

// Includes reports whether userID is one of the two participants.
func (c Conversation) Includes(userID string) bool {
	return userID != "" && (userID == c.ParticipantA || userID == c.ParticipantB)
}

// StoredMessage is the canonical persisted message representation.
// Messages are soft-deleted only: IsDeleted excludes a message from all
// future reads and broadcasts while the row itself survives.
type StoredMessage struct {
	ID             string
	ConversationID string
	Seq            int64
	SenderID       string
	RecipientID    string
	Content        string
	CreatedAt      time.Time
	IsRead         bool
	IsDeleted      bool
	DeletedAt      *time.Time
}

// AppendMessageInput describes a message append request.
type AppendMessageInput struct {
	ConversationID string
	SenderID       string
	RecipientID    string
	Content        string
	Now            time.Time
}

// ListMessagesInput describes a history query request.
type ListMessagesInput struct {
	ConversationID string
	AfterSeq       *int64
	Limit          int
}

// ListMessagesResult contains the retrieved history window.
type ListMessagesResult struct {
	Messages []StoredMessage
	HasMore  bool
}

// Store persists conversations and messages. It is the single source of
// truth after a process restart; in-memory presence and mailbox state are
// advisory and must reconcile against it.
//
// Requirements:
//   - EnsureConversation is idempotent under creation races
//   - Monotonic seq per conversation, allocated inside the append
//   - Reads exclude soft-deleted rows, ordered by seq ASC
type Store interface {
	EnsureConversation(ctx context.Context, userA, userB string) (Conversation, error)
	AppendMessage(ctx context.Context, in AppendMessageInput) (StoredMessage, error)
	ListMessages(ctx context.Context, in ListMessagesInput) (ListMessagesResult, error)
	GetMessage(ctx context.Context, messageID string) (StoredMessage, error)
	SoftDeleteMessage(ctx context.Context, messageID string, now time.Time) error

	// MarkMessagesRead flips isRead on every unread message addressed to
	// recipientID and returns the number of rows affected.
	MarkMessagesRead(ctx context.Context, recipientID string) (int64, error)

	// UnreadCounts returns per-conversation unread totals for recipientID.
	// This is the durable authority the advisory mailbox reconciles against.
	UnreadCounts(ctx context.Context, recipientID string) (map[string]int, error)

	Close() error
}
