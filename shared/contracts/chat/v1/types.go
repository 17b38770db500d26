// Package v1 defines the Ripple chat protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Client -> server event types (wire-stable).
const (
	// TypeUserIdentify binds a stable user identity to the connection.
	// It must be the first event on a new connection.
	TypeUserIdentify = "user_identify"

	// TypeJoinConversation subscribes the connection to a conversation room
	// and requests a history load.
	TypeJoinConversation = "join_conversation"

	// TypeLoadMessages is an explicit history fetch.
	TypeLoadMessages = "load_conversation_messages"

	// TypeSendMessage submits a new message.
	TypeSendMessage = "send_message"

	// TypeTypingStart and TypeTypingStop are ephemeral typing indicators.
	// They are relayed to the recipient and never persisted.
	TypeTypingStart = "typing_start"
	TypeTypingStop  = "typing_stop"

	// TypeDeleteMessage requests a soft delete.
	TypeDeleteMessage = "delete_message"

	// TypeClearNotifications acknowledges missed messages and clears the badge.
	TypeClearNotifications = "clear_notification_count"
)

// Server -> client event types (wire-stable).
const (
	// TypeIdentified acknowledges a successful identity binding.
	TypeIdentified = "identified"

	TypeUserOnline  = "user_online"
	TypeUserOffline = "user_offline"

	// TypeLoadMessagesResult returns a window of conversation history.
	TypeLoadMessagesResult = "load_messages"

	// TypeNewMessage broadcasts an accepted message to the conversation room.
	TypeNewMessage = "new_message"

	// TypeMessageSent is the sender-only delivery confirmation.
	TypeMessageSent = "message_sent"

	// TypeNewMessageNotification is pushed to an online recipient outside the room.
	TypeNewMessageNotification = "new_message_notification"

	// TypeMessageNotification carries the grouped missed-message summary on reconnect.
	TypeMessageNotification = "message_notification"

	TypeMissedCountUpdated = "missed_message_count_updated"

	TypeMessageDeleted = "message_deleted"

	TypeMessageError = "message_error"
)

// NotificationMissedMessage is the value of MessageNotificationPayload.Kind
// for missed-message summaries.
const NotificationMissedMessage = "missed_message"

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeUserIdentify,
		TypeJoinConversation,
		TypeLoadMessages,
		TypeSendMessage,
		TypeTypingStart,
		TypeTypingStop,
		TypeDeleteMessage,
		TypeClearNotifications,
		TypeIdentified,
		TypeUserOnline,
		TypeUserOffline,
		TypeLoadMessagesResult,
		TypeNewMessage,
		TypeMessageSent,
		TypeNewMessageNotification,
		TypeMessageNotification,
		TypeMissedCountUpdated,
		TypeMessageDeleted,
		TypeMessageError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Shared shapes ----

// UserRef is the minimal identity detail attached to broadcast messages.
// Full profiles are owned by the external identity system.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// MessagePayload is the canonical wire representation of a stored message.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Seq            int64     `json:"seq"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	IsRead         bool      `json:"isRead"`
	Sender         UserRef   `json:"sender"`
	Recipient      UserRef   `json:"recipient"`
}

// ---- Client -> server payloads ----

// UserIdentifyPayload binds a user identity after connect.
// Token is the bearer credential checked by the identity gate.
type UserIdentifyPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Token  string `json:"token,omitempty"`
}

// JoinConversationPayload subscribes to a conversation room.
type JoinConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// LoadMessagesPayload requests a history window.
type LoadMessagesPayload struct {
	ConversationID string `json:"conversationId"`
	AfterSeq       *int64 `json:"afterSeq,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// SendMessagePayload submits a new message.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content"`
	RecipientID    string `json:"recipientId"`
	SenderID       string `json:"senderId"`
}

// TypingPayload is shared by typing_start and typing_stop.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	RecipientID    string `json:"recipientId"`
	UserID         string `json:"userId,omitempty"`
}

// DeleteMessagePayload requests a soft delete.
type DeleteMessagePayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	DeletedBy      string `json:"deletedBy"`
}

// ClearNotificationsPayload acknowledges missed messages for a user.
type ClearNotificationsPayload struct {
	UserID string `json:"userId"`
}

// ---- Server -> client payloads ----

// IdentifiedPayload acknowledges identity binding and returns the connection id.
type IdentifiedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

// PresencePayload is shared by user_online and user_offline.
type PresencePayload struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// LoadMessagesResultPayload returns messages for a history fetch request.
type LoadMessagesResultPayload struct {
	ConversationID string           `json:"conversationId"`
	Messages       []MessagePayload `json:"messages"`
	HasMore        bool             `json:"hasMore"`
}

// MessageSentPayload is the sender-only confirmation, distinct from the
// broadcast to the recipient.
type MessageSentPayload struct {
	Message         MessagePayload `json:"message"`
	RecipientOnline bool           `json:"recipientOnline"`
	StoredAsMissed  bool           `json:"storedAsMissed"`
}

// NewMessageNotificationPayload is pushed to every live connection of an
// online recipient.
type NewMessageNotificationPayload struct {
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	MessageContent string    `json:"messageContent"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	Timestamp      time.Time `json:"timestamp"`
}

// MessageNotificationPayload is the grouped missed-message summary delivered
// on reconnect, one per sender.
type MessageNotificationPayload struct {
	Kind           string `json:"type"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	MessageCount   int    `json:"messageCount"`
	LatestMessage  string `json:"latestMessage"`
	ConversationID string `json:"conversationId"`
}

// MissedCountUpdatedPayload carries the total badge count plus the
// per-conversation breakdown.
type MissedCountUpdatedPayload struct {
	UserID             string         `json:"userId"`
	MissedMessageCount int            `json:"missedMessageCount"`
	ConversationCounts map[string]int `json:"conversationCounts,omitempty"`
}

// MessageDeletedPayload is broadcast to the conversation room after a soft delete.
type MessageDeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	DeletedBy      string `json:"deletedBy"`
}

// MessageErrorPayload is the structured error event sent to the originating
// connection only.
type MessageErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
