package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

const (
	memMaxMessagesPerConversation = 10_000

	historyDefaultLimit = 50
	historyMaxLimit     = 200
)

// MemoryStore is the dev/test Store used when no database is configured.
// Semantics mirror PostgresStore: idempotent conversation creation, per-
// conversation monotonic seq, centrally filtered soft deletes.
type MemoryStore struct {
	mu     sync.Mutex
	convs  map[string]*memConversation
	byID   map[string]*StoredMessage
	closed bool
}

type memConversation struct {
	conv Conversation
	seq  int64
	msgs []*StoredMessage // ordered by seq
}

// NewMemoryStore constructs an empty in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs: make(map[string]*memConversation),
		byID:  make(map[string]*StoredMessage),
	}
}

// Close marks the store closed; later calls fail like an unreachable backend.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) checkOpen() error {
	if s.closed {
		return &StoreUnavailableError{Err: errors.New("memory store closed")}
	}
	return nil
}

// EnsureConversation creates the conversation row for the pair if absent.
// Concurrent first-sends converge on the same row.
func (s *MemoryStore) EnsureConversation(ctx context.Context, userA, userB string) (Conversation, error) {
	if err := ctx.Err(); err != nil {
		return Conversation{}, err
	}
	lo, hi := ParticipantPair(userA, userB)
	if lo == "" || hi == "" {
		return Conversation{}, &ValidationError{Field: "participants", Reason: "empty user id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return Conversation{}, err
	}

	id := ConversationID(lo, hi)
	if c, ok := s.convs[id]; ok {
		return c.conv, nil
	}

	c := &memConversation{
		conv: Conversation{
			ID:           id,
			ParticipantA: lo,
			ParticipantB: hi,
			CreatedAt:    time.Now().UTC(),
		},
		msgs: make([]*StoredMessage, 0, 64),
	}
	s.convs[id] = c
	return c.conv, nil
}

// AppendMessage persists a message with monotonic sequence allocation.
func (s *MemoryStore) AppendMessage(ctx context.Context, in AppendMessageInput) (StoredMessage, error) {
	if err := ctx.Err(); err != nil {
		return StoredMessage{}, err
	}
	if in.ConversationID == "" || in.SenderID == "" || in.RecipientID == "" || in.Content == "" {
		return StoredMessage{}, &ValidationError{Field: "message", Reason: "missing required field"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return StoredMessage{}, err
	}

	c, ok := s.convs[in.ConversationID]
	if !ok {
		return StoredMessage{}, &NotFoundError{Kind: "conversation", ID: in.ConversationID}
	}

	c.seq++
	msg := &StoredMessage{
		ID:             NewMessageID(now),
		ConversationID: in.ConversationID,
		Seq:            c.seq,
		SenderID:       in.SenderID,
		RecipientID:    in.RecipientID,
		Content:        in.Content,
		CreatedAt:      now,
	}
	c.msgs = append(c.msgs, msg)
	s.byID[msg.ID] = msg

	// Bound memory to avoid unbounded growth in dev.
	if len(c.msgs) > memMaxMessagesPerConversation {
		drop := c.msgs[:len(c.msgs)-memMaxMessagesPerConversation]
		for _, m := range drop {
			delete(s.byID, m.ID)
		}
		c.msgs = c.msgs[len(drop):]
	}

	return *msg, nil
}

// ListMessages returns non-deleted messages ordered by seq ASC with paging
// via AfterSeq. Soft-deleted rows are filtered here, never ad hoc by callers.
func (s *MemoryStore) ListMessages(ctx context.Context, in ListMessagesInput) (ListMessagesResult, error) {
	if err := ctx.Err(); err != nil {
		return ListMessagesResult{}, err
	}
	if in.ConversationID == "" {
		return ListMessagesResult{}, &ValidationError{Field: "conversationId", Reason: "missing conversation id"}
	}

	limit := clampHistoryLimit(in.Limit)
	fetch := limit + 1

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return ListMessagesResult{}, err
	}
	c := s.convs[in.ConversationID]
	var snap []StoredMessage
	if c != nil {
		snap = make([]StoredMessage, 0, len(c.msgs))
		for _, m := range c.msgs {
			if m.IsDeleted {
				continue
			}
			snap = append(snap, *m)
		}
	}
	s.mu.Unlock()

	if len(snap) == 0 {
		return ListMessagesResult{}, nil
	}

	sort.Slice(snap, func(i, j int) bool { return snap[i].Seq < snap[j].Seq })

	start := 0
	if in.AfterSeq != nil {
		after := *in.AfterSeq
		start = sort.Search(len(snap), func(i int) bool { return snap[i].Seq > after })
		if start >= len(snap) {
			return ListMessagesResult{}, nil
		}
	}

	end := start + fetch
	if end > len(snap) {
		end = len(snap)
	}
	out := snap[start:end]

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}

	return ListMessagesResult{Messages: out, HasMore: hasMore}, nil
}

// GetMessage resolves a message by id, including soft-deleted rows: internal
// bookkeeping may still reference them even though reads exclude them.
func (s *MemoryStore) GetMessage(ctx context.Context, messageID string) (StoredMessage, error) {
	if err := ctx.Err(); err != nil {
		return StoredMessage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return StoredMessage{}, err
	}

	m, ok := s.byID[messageID]
	if !ok {
		return StoredMessage{}, &NotFoundError{Kind: "message", ID: messageID}
	}
	return *m, nil
}

// SoftDeleteMessage flags a message deleted with a timestamp. The row is
// never removed.
func (s *MemoryStore) SoftDeleteMessage(ctx context.Context, messageID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	m, ok := s.byID[messageID]
	if !ok {
		return &NotFoundError{Kind: "message", ID: messageID}
	}
	if m.IsDeleted {
		return nil
	}
	m.IsDeleted = true
	t := now
	m.DeletedAt = &t
	return nil
}

// MarkMessagesRead flips isRead on every unread, non-deleted message
// addressed to recipientID.
func (s *MemoryStore) MarkMessagesRead(ctx context.Context, recipientID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int64
	for _, m := range s.byID {
		if m.RecipientID == recipientID && !m.IsRead && !m.IsDeleted {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

// UnreadCounts returns per-conversation unread totals for recipientID.
func (s *MemoryStore) UnreadCounts(ctx context.Context, recipientID string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	out := make(map[string]int)
	for _, m := range s.byID {
		if m.RecipientID == recipientID && !m.IsRead && !m.IsDeleted {
			out[m.ConversationID]++
		}
	}
	return out, nil
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return historyDefaultLimit
	}
	if limit > historyMaxLimit {
		return historyMaxLimit
	}
	return limit
}
