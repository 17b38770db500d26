package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ripple/internal/metrics"
	v1 "ripple/shared/contracts/chat/v1"
)

// Router owns the send/broadcast path: it persists a message, delivers it to
// the recipient's live connections or falls back to the offline mailbox, and
// triggers the notification fanout.
//
// There is exactly one send path and it fails closed: a message is never
// reported as sent unless the store accepted it first. The mailbox enqueue
// happens strictly after persistence, never as a substitute for it.
type Router struct {
	log      *slog.Logger
	store    Store
	presence *Presence
	mailbox  Mailbox
	hub      *Hub
	fanout   *Fanout
}

// NewRouter wires the broadcast router from its injected collaborators.
func NewRouter(log *slog.Logger, store Store, presence *Presence, mailbox Mailbox, hub *Hub, fanout *Fanout) *Router {
	return &Router{
		log:      log,
		store:    store,
		presence: presence,
		mailbox:  mailbox,
		hub:      hub,
		fanout:   fanout,
	}
}

// SendMessageInput describes a validated-on-entry send request.
type SendMessageInput struct {
	SenderID    string
	RecipientID string
	Content     string

	// SenderName is the display detail bound at identify time.
	SenderName string

	Now time.Time
}

// SendResult is returned to the caller for the sender-only confirmation.
type SendResult struct {
	Message         StoredMessage
	Conversation    Conversation
	RecipientOnline bool
	StoredAsMissed  bool
	QueueLength     int
}

// SendMessage validates, persists, and routes one message.
//
// Logical steps: resolve/create conversation -> persist -> determine the
// recipient's live connection set -> emit to the conversation room and every
// recipient connection, or enqueue a mailbox entry for an offline recipient.
func (rt *Router) SendMessage(ctx context.Context, in SendMessageInput) (SendResult, error) {
	senderID, err := ValidateUserID("senderId", in.SenderID)
	if err != nil {
		return SendResult{}, err
	}
	recipientID, err := ValidateUserID("recipientId", in.RecipientID)
	if err != nil {
		return SendResult{}, err
	}
	if senderID == recipientID {
		return SendResult{}, &ValidationError{Field: "recipientId", Reason: "sender and recipient are the same user"}
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return SendResult{}, &ValidationError{Field: "content", Reason: "empty after trimming"}
	}
	if len([]rune(content)) > maxMessageChars {
		return SendResult{}, &ValidationError{Field: "content", Reason: "message too long"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	conv, err := rt.store.EnsureConversation(ctx, senderID, recipientID)
	if err != nil {
		metrics.SendErrors.WithLabelValues(ErrorCode(err)).Inc()
		return SendResult{}, err
	}

	msg, err := rt.store.AppendMessage(ctx, AppendMessageInput{
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Now:            now,
	})
	if err != nil {
		metrics.SendErrors.WithLabelValues(ErrorCode(err)).Inc()
		return SendResult{}, err
	}

	res := SendResult{Message: msg, Conversation: conv}

	recipientConns := rt.presence.ConnectionsFor(recipientID)
	res.RecipientOnline = len(recipientConns) > 0

	sender := v1.UserRef{ID: senderID, Email: in.SenderName}
	recipient := v1.UserRef{ID: recipientID}

	if res.RecipientOnline {
		// Room broadcast reaches both parties, including the sender's other
		// open tabs.
		rt.hub.Room(conv.ID).Broadcast(newEnvelope(v1.TypeNewMessage, messagePayload(msg, sender, recipient), now))

		notify := newEnvelope(v1.TypeNewMessageNotification, v1.NewMessageNotificationPayload{
			SenderID:       senderID,
			SenderName:     in.SenderName,
			MessageContent: content,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			Timestamp:      now,
		}, now)
		for _, c := range recipientConns {
			c.TryEnqueue(notify)
		}

		metrics.MessagesSent.WithLabelValues("live").Inc()
		rt.log.Info("router.send.live",
			"conversation_id", conv.ID,
			"message_id", msg.ID,
			"seq", msg.Seq,
			"recipient_connections", len(recipientConns),
		)
		return res, nil
	}

	// Offline path. The message is already durable; mailbox state is advisory
	// and its failure must not be conflated with a delivery failure.
	res.StoredAsMissed = true

	qlen, mbErr := rt.mailbox.Enqueue(ctx, MissedMessage{
		RecipientID:    recipientID,
		MessageID:      msg.ID,
		SenderID:       senderID,
		SenderName:     in.SenderName,
		ConversationID: conv.ID,
		Content:        content,
		CreatedAt:      now,
	})
	if mbErr != nil {
		rt.log.Warn("router.send.mailbox_enqueue_fail", "conversation_id", conv.ID, "err", mbErr)
	}
	res.QueueLength = qlen

	// Sender's other tabs still see their own outgoing message.
	rt.hub.Room(conv.ID).Broadcast(newEnvelope(v1.TypeNewMessage, messagePayload(msg, sender, recipient), now))

	metrics.MessagesSent.WithLabelValues("missed").Inc()
	rt.log.Info("router.send.missed",
		"conversation_id", conv.ID,
		"message_id", msg.ID,
		"seq", msg.Seq,
		"queue_length", qlen,
	)
	return res, nil
}

// DeleteMessage soft-deletes a message on behalf of requesterID and
// broadcasts the deletion to the conversation room. Only the sender or the
// recipient may delete; anyone else gets an AuthorizationError and nothing
// is broadcast.
func (rt *Router) DeleteMessage(ctx context.Context, messageID, requesterID string, now time.Time) (StoredMessage, error) {
	requesterID, err := ValidateUserID("deletedBy", requesterID)
	if err != nil {
		return StoredMessage{}, err
	}
	if strings.TrimSpace(messageID) == "" {
		return StoredMessage{}, &ValidationError{Field: "messageId", Reason: "empty message id"}
	}

	msg, err := rt.store.GetMessage(ctx, messageID)
	if err != nil {
		return StoredMessage{}, err
	}

	if msg.SenderID != requesterID && msg.RecipientID != requesterID {
		return StoredMessage{}, &AuthorizationError{Reason: "requester is not a participant"}
	}

	if msg.IsDeleted {
		// Idempotent: already gone from reads, nothing new to broadcast.
		return msg, nil
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	if err := rt.store.SoftDeleteMessage(ctx, messageID, now); err != nil {
		return StoredMessage{}, err
	}
	msg.IsDeleted = true
	msg.DeletedAt = &now

	rt.hub.Room(msg.ConversationID).Broadcast(newEnvelope(v1.TypeMessageDeleted, v1.MessageDeletedPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		DeletedBy:      requesterID,
	}, now))

	metrics.MessagesDeleted.Inc()
	rt.log.Info("router.delete", "conversation_id", msg.ConversationID, "message_id", msg.ID, "deleted_by", requesterID)
	return msg, nil
}

// History returns a conversation window for a participant. Requesters outside
// the participant pair are rejected before the store is touched.
func (rt *Router) History(ctx context.Context, requesterID, conversationID string, afterSeq *int64, limit int) (ListMessagesResult, error) {
	requesterID, err := ValidateUserID("userId", requesterID)
	if err != nil {
		return ListMessagesResult{}, err
	}

	a, b, ok := ParticipantsFromID(conversationID)
	if !ok {
		return ListMessagesResult{}, &ValidationError{Field: "conversationId", Reason: "malformed conversation id"}
	}
	if requesterID != a && requesterID != b {
		return ListMessagesResult{}, &AuthorizationError{Reason: "requester is not a participant"}
	}

	return rt.store.ListMessages(ctx, ListMessagesInput{
		ConversationID: conversationID,
		AfterSeq:       afterSeq,
		Limit:          limit,
	})
}

// Acknowledge clears both layers of missed-message state for userID: the
// durable isRead flags first (the authority), then the advisory mailbox.
// It then pushes a zeroed badge to the user's live connections.
func (rt *Router) Acknowledge(ctx context.Context, userID string, now time.Time) (int64, error) {
	userID, err := ValidateUserID("userId", userID)
	if err != nil {
		return 0, err
	}

	affected, err := rt.store.MarkMessagesRead(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := rt.mailbox.Acknowledge(ctx, userID); err != nil {
		// Advisory layer only; durable state is already consistent.
		rt.log.Warn("router.acknowledge.mailbox_fail", "user_id", userID, "err", err)
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	rt.fanout.MissedCount(userID, nil, now)

	metrics.MissedAcknowledged.Inc()
	rt.log.Info("router.acknowledge", "user_id", userID, "marked_read", affected)
	return affected, nil
}

// MissedState returns the reconnect view for userID: grouped per-sender
// summaries from the advisory mailbox plus the durable per-conversation
// unread counts. After a restart the mailbox is empty while the durable
// counts survive; both are reported so clients reconcile against the store.
func (rt *Router) MissedState(ctx context.Context, userID string) ([]MissedSummary, map[string]int, error) {
	entries, err := rt.mailbox.Retrieve(ctx, userID)
	if err != nil {
		rt.log.Warn("router.missed_state.mailbox_fail", "user_id", userID, "err", err)
		entries = nil
	}

	counts, err := rt.store.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	return SummarizeBySender(entries), counts, nil
}
