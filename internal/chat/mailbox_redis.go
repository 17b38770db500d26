package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Missed entries are advisory; the durable isRead flags survive them.
	mailboxTTL = 7 * 24 * time.Hour

	mailboxKeyPrefix = "mailbox:"
)

// RedisMailbox is a Mailbox backed by a Redis list per recipient. It keeps
// the mailbox interface stable while letting multiple server instances share
// missed-message state (the horizontal-scaling path for what is otherwise
// process-local memory).
type RedisMailbox struct {
	client *redis.Client
}

// NewRedisMailbox connects to Redis and validates connectivity.
func NewRedisMailbox(ctx context.Context, redisURL string) (*RedisMailbox, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisMailbox{client: client}, nil
}

// Close closes the Redis connection.
func (mb *RedisMailbox) Close() error {
	return mb.client.Close()
}

func mailboxKey(recipientID string) string {
	return mailboxKeyPrefix + recipientID
}

// Enqueue appends a JSON-encoded entry and returns the new queue length.
func (mb *RedisMailbox) Enqueue(ctx context.Context, m MissedMessage) (int, error) {
	if m.RecipientID == "" {
		return 0, &ValidationError{Field: "recipientId", Reason: "empty user id"}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}

	key := mailboxKey(m.RecipientID)
	n, err := mb.client.RPush(ctx, key, data).Result()
	if err != nil {
		return 0, err
	}
	mb.client.Expire(ctx, key, mailboxTTL)
	return int(n), nil
}

// Retrieve returns the recipient's full queue without clearing it.
func (mb *RedisMailbox) Retrieve(ctx context.Context, recipientID string) ([]MissedMessage, error) {
	raw, err := mb.client.LRange(ctx, mailboxKey(recipientID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]MissedMessage, 0, len(raw))
	for _, item := range raw {
		var m MissedMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			// Skip corrupt entries instead of failing the whole read.
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Acknowledge clears the recipient's queue.
func (mb *RedisMailbox) Acknowledge(ctx context.Context, recipientID string) error {
	return mb.client.Del(ctx, mailboxKey(recipientID)).Err()
}

// Count returns the recipient's queue length.
func (mb *RedisMailbox) Count(ctx context.Context, recipientID string) (int, error) {
	n, err := mb.client.LLen(ctx, mailboxKey(recipientID)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
