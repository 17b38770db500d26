package chat

import (
	"errors"
	"fmt"
)

// Error taxonomy for the messaging boundary.
//
// All of these are converted to a message_error envelope for the originating
// connection; none of them crash the process.

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports an action attempted by a non-participant.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization: " + e.Reason
}

// NotFoundError reports an absent message or conversation.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// StoreUnavailableError wraps a durability-layer failure. The send path fails
// closed on it: no message is accepted as sent unless persisted.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return "store unavailable: " + e.Err.Error()
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// Wire error codes carried in message_error payloads.
const (
	CodeValidation       = "validation_error"
	CodeAuthorization    = "authorization_error"
	CodeNotFound         = "not_found"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal_error"
)

// ErrorCode maps a boundary error to its wire code.
func ErrorCode(err error) string {
	var (
		ve *ValidationError
		ae *AuthorizationError
		ne *NotFoundError
		se *StoreUnavailableError
	)
	switch {
	case errors.As(err, &ve):
		return CodeValidation
	case errors.As(err, &ae):
		return CodeAuthorization
	case errors.As(err, &ne):
		return CodeNotFound
	case errors.As(err, &se):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}
