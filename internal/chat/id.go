package chat

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable, which keeps message and connection
// ids useful for tracing and log ordering.
func NewULID(now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		// crypto/rand failing is not a recoverable condition here.
		panic(err)
	}
	return id.String()
}

// NewConnectionID returns a ULID used as the websocket connection id.
func NewConnectionID(now time.Time) string { return NewULID(now) }

// NewMessageID returns a ULID used as a durable message id.
func NewMessageID(now time.Time) string { return NewULID(now) }

// NewEnvelopeID returns a ULID used as a wire envelope id.
func NewEnvelopeID(now time.Time) string { return NewULID(now) }
