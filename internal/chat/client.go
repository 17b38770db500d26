package chat

import (
	"sync"

	v1 "ripple/shared/contracts/chat/v1"
)

// Client represents one live transport connection bound to a user identity.
// Many Clients may map to one user (multi-tab/device).
//
// Design notes:
// - Send is intentionally NOT closed by the server to avoid panics from concurrent broadcasters.
// - done is used to signal goroutines to stop.
// - Close is idempotent.
type Client struct {
	ConnectionID string
	UserID       string
	Email        string
	Send         chan v1.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(connectionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		ConnectionID: connectionID,
		Send:         make(chan v1.Envelope, sendQueueSize),
		done:         make(chan struct{}),
	}
}

// DisplayName is the human-facing name attached to notifications.
// Identity profiles live outside the messaging core, so email is the best
// detail available here.
func (c *Client) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.Email != "" {
		return c.Email
	}
	return c.UserID
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
// It does NOT close Send to keep broadcast safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// TryEnqueue offers an envelope to the client queue without blocking.
// Broadcast paths drop under backpressure rather than stalling the room.
func (c *Client) TryEnqueue(env v1.Envelope) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}
