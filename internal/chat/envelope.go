package chat

import (
	"encoding/json"
	"time"

	v1 "ripple/shared/contracts/chat/v1"
)

// newEnvelope wraps a payload value into the canonical wire envelope.
// Payload types in contracts/chat/v1 marshal without error; an encoding
// failure here would be a programming bug, so it is reported as an empty
// payload rather than a panic.
func newEnvelope(typ string, payload any, now time.Time) v1.Envelope {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}

	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewEnvelopeID(now),
		TS:      now,
		Payload: raw,
	}
}

// messagePayload converts a stored message into its wire shape.
func messagePayload(m StoredMessage, sender, recipient v1.UserRef) v1.MessagePayload {
	return v1.MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Content:        m.Content,
		Timestamp:      m.CreatedAt,
		IsRead:         m.IsRead,
		Sender:         sender,
		Recipient:      recipient,
	}
}
