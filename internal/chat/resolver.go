package chat

import "strings"

// conversationIDSep joins the sorted participant pair into the canonical
// conversation identity. Kept out of user ids by ValidateUserID.
const conversationIDSep = ":"

// ParticipantPair returns the unordered pair (a, b) in canonical sorted order.
func ParticipantPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// ConversationID derives the stable conversation identifier for a pair of
// user identities. Pure and order-independent:
// ConversationID(a, b) == ConversationID(b, a).
func ConversationID(a, b string) string {
	lo, hi := ParticipantPair(a, b)
	return lo + conversationIDSep + hi
}

// ParticipantsFromID splits a conversation id back into its participant pair.
// The second return is false when the id is not well-formed.
func ParticipantsFromID(conversationID string) (string, string, bool) {
	lo, hi, ok := strings.Cut(conversationID, conversationIDSep)
	if !ok || lo == "" || hi == "" {
		return "", "", false
	}
	return lo, hi, true
}

// ValidateUserID checks that a user identity is well-formed: non-empty after
// trimming and free of the conversation id delimiter.
func ValidateUserID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &ValidationError{Field: field, Reason: "empty user id"}
	}
	if strings.Contains(id, conversationIDSep) {
		return "", &ValidationError{Field: field, Reason: "user id contains reserved character"}
	}
	return id, nil
}
