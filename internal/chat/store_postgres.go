package chat

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Concurrency model:
// - Uses per-conversation transactional advisory locks so that seq
//   allocation is strictly monotonic under concurrent senders. Delivery
//   order equals persistence-completion order equals seq order.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "ripple").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "ripple",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// EnsureSchema creates the schema and tables if absent. Intended for dev and
// tests; production deployments manage migrations externally.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	conversations := pgIdent(s.schema, "conversations")
	cursors := pgIdent(s.schema, "conversation_cursors")
	messages := pgIdent(s.schema, "messages")

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + conversations + ` (
		     id            text PRIMARY KEY,
		     participant_a text NOT NULL,
		     participant_b text NOT NULL,
		     created_at    timestamptz NOT NULL DEFAULT now()
		 )`,
		`CREATE TABLE IF NOT EXISTS ` + cursors + ` (
		     conversation_id text PRIMARY KEY,
		     next_seq        bigint NOT NULL,
		     updated_at      timestamptz NOT NULL DEFAULT now()
		 )`,
		`CREATE TABLE IF NOT EXISTS ` + messages + ` (
		     id              text PRIMARY KEY,
		     conversation_id text NOT NULL,
		     seq             bigint NOT NULL,
		     sender_id       text NOT NULL,
		     recipient_id    text NOT NULL,
		     content         text NOT NULL,
		     created_at      timestamptz NOT NULL,
		     is_read         boolean NOT NULL DEFAULT false,
		     is_deleted      boolean NOT NULL DEFAULT false,
		     deleted_at      timestamptz,
		     UNIQUE (conversation_id, seq)
		 )`,
		`CREATE INDEX IF NOT EXISTS messages_unread_by_recipient
		     ON ` + messages + ` (recipient_id, conversation_id)
		     WHERE NOT is_read AND NOT is_deleted`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return storeErr(err)
		}
	}
	return nil
}

// EnsureConversation creates the conversation row for the pair if absent.
// A creation race resolves via ON CONFLICT DO NOTHING plus a re-read, so
// concurrent first-sends converge on exactly one row.
func (s *PostgresStore) EnsureConversation(ctx context.Context, userA, userB string) (Conversation, error) {
	if s == nil || s.pool == nil {
		return Conversation{}, errors.New("chat: nil store")
	}
	lo, hi := ParticipantPair(userA, userB)
	if lo == "" || hi == "" {
		return Conversation{}, &ValidationError{Field: "participants", Reason: "empty user id"}
	}
	if err := ctx.Err(); err != nil {
		return Conversation{}, err
	}

	id := ConversationID(lo, hi)
	conversations := pgIdent(s.schema, "conversations")

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+conversations+` (id, participant_a, participant_b)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		id, lo, hi,
	); err != nil {
		return Conversation{}, storeErr(err)
	}

	var c Conversation
	if err := s.pool.QueryRow(ctx,
		`SELECT id, participant_a, participant_b, created_at
		   FROM `+conversations+`
		  WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt); err != nil {
		return Conversation{}, storeErr(err)
	}
	return c, nil
}

// AppendMessage persists a message with monotonic sequence allocation.
func (s *PostgresStore) AppendMessage(ctx context.Context, in AppendMessageInput) (StoredMessage, error) {
	if s == nil || s.pool == nil {
		return StoredMessage{}, errors.New("chat: nil store")
	}
	if in.ConversationID == "" || in.SenderID == "" || in.RecipientID == "" || in.Content == "" {
		return StoredMessage{}, &ValidationError{Field: "message", Reason: "missing required field"}
	}
	if err := ctx.Err(); err != nil {
		return StoredMessage{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return StoredMessage{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cursors := pgIdent(s.schema, "conversation_cursors")
	messages := pgIdent(s.schema, "messages")

	// Serialize all writes per conversation: no seq races, strict monotonic
	// ordering under concurrent senders.
	//
	// hashtextextended reduces collision risk vs hashtext (still a hash, but better).
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, in.ConversationID); err != nil {
		return StoredMessage{}, storeErr(err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+cursors+` (conversation_id, next_seq)
		 VALUES ($1, 1)
		 ON CONFLICT (conversation_id) DO NOTHING`,
		in.ConversationID,
	); err != nil {
		return StoredMessage{}, storeErr(err)
	}

	var seq int64
	if err := tx.QueryRow(ctx,
		`UPDATE `+cursors+`
		    SET next_seq = next_seq + 1,
		        updated_at = now()
		  WHERE conversation_id = $1
		RETURNING (next_seq - 1)`,
		in.ConversationID,
	).Scan(&seq); err != nil {
		return StoredMessage{}, storeErr(err)
	}

	msg := StoredMessage{
		ID:             NewMessageID(now),
		ConversationID: in.ConversationID,
		Seq:            seq,
		SenderID:       in.SenderID,
		RecipientID:    in.RecipientID,
		Content:        in.Content,
		CreatedAt:      now,
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+messages+` (
		     id, conversation_id, seq, sender_id, recipient_id, content, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.Seq, msg.SenderID, msg.RecipientID, msg.Content, msg.CreatedAt,
	); err != nil {
		return StoredMessage{}, storeErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return StoredMessage{}, storeErr(err)
	}
	return msg, nil
}

// ListMessages returns non-deleted messages ordered by seq ASC, with optional
// paging by AfterSeq. The soft-delete filter lives in this one query path.
func (s *PostgresStore) ListMessages(ctx context.Context, in ListMessagesInput) (ListMessagesResult, error) {
	if s == nil || s.pool == nil {
		return ListMessagesResult{}, errors.New("chat: nil store")
	}
	if in.ConversationID == "" {
		return ListMessagesResult{}, &ValidationError{Field: "conversationId", Reason: "missing conversation id"}
	}
	if err := ctx.Err(); err != nil {
		return ListMessagesResult{}, err
	}

	limit := clampHistoryLimit(in.Limit)
	fetch := limit + 1

	messages := pgIdent(s.schema, "messages")

	var (
		rows pgx.Rows
		err  error
	)

	if in.AfterSeq == nil {
		rows, err = s.pool.Query(ctx,
			`SELECT id, conversation_id, seq, sender_id, recipient_id, content, created_at, is_read
			   FROM `+messages+`
			  WHERE conversation_id = $1 AND NOT is_deleted
			  ORDER BY seq ASC
			  LIMIT $2`,
			in.ConversationID, fetch,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, conversation_id, seq, sender_id, recipient_id, content, created_at, is_read
			   FROM `+messages+`
			  WHERE conversation_id = $1 AND NOT is_deleted AND seq > $2
			  ORDER BY seq ASC
			  LIMIT $3`,
			in.ConversationID, *in.AfterSeq, fetch,
		)
	}
	if err != nil {
		return ListMessagesResult{}, storeErr(err)
	}
	defer rows.Close()

	msgs := make([]StoredMessage, 0, fetch)
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.Seq,
			&m.SenderID,
			&m.RecipientID,
			&m.Content,
			&m.CreatedAt,
			&m.IsRead,
		); err != nil {
			return ListMessagesResult{}, storeErr(err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return ListMessagesResult{}, storeErr(err)
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}

	return ListMessagesResult{Messages: msgs, HasMore: hasMore}, nil
}

// GetMessage resolves a message by id, including soft-deleted rows (internal
// bookkeeping may still reference them).
func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (StoredMessage, error) {
	if s == nil || s.pool == nil {
		return StoredMessage{}, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return StoredMessage{}, err
	}

	messages := pgIdent(s.schema, "messages")

	var m StoredMessage
	err := s.pool.QueryRow(ctx,
		`SELECT id, conversation_id, seq, sender_id, recipient_id, content, created_at, is_read, is_deleted, deleted_at
		   FROM `+messages+`
		  WHERE id = $1`,
		messageID,
	).Scan(&m.ID, &m.ConversationID, &m.Seq, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt, &m.IsRead, &m.IsDeleted, &m.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredMessage{}, &NotFoundError{Kind: "message", ID: messageID}
	}
	if err != nil {
		return StoredMessage{}, storeErr(err)
	}
	return m, nil
}

// SoftDeleteMessage flags a message deleted with a timestamp.
func (s *PostgresStore) SoftDeleteMessage(ctx context.Context, messageID string, now time.Time) error {
	if s == nil || s.pool == nil {
		return errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	messages := pgIdent(s.schema, "messages")

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+messages+`
		    SET is_deleted = true,
		        deleted_at = $2
		  WHERE id = $1 AND NOT is_deleted`,
		messageID, now,
	)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		// Either absent or already deleted; distinguish for the caller.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+messages+` WHERE id = $1)`,
			messageID,
		).Scan(&exists); err != nil {
			return storeErr(err)
		}
		if !exists {
			return &NotFoundError{Kind: "message", ID: messageID}
		}
	}
	return nil
}

// MarkMessagesRead flips isRead on every unread, non-deleted message
// addressed to recipientID and returns the number of rows affected.
func (s *PostgresStore) MarkMessagesRead(ctx context.Context, recipientID string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	messages := pgIdent(s.schema, "messages")

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+messages+`
		    SET is_read = true
		  WHERE recipient_id = $1 AND NOT is_read AND NOT is_deleted`,
		recipientID,
	)
	if err != nil {
		return 0, storeErr(err)
	}
	return tag.RowsAffected(), nil
}

// UnreadCounts returns per-conversation unread totals for recipientID.
// This derives from the isRead flags directly so there is a single durable
// source of truth rather than a separately maintained counter.
func (s *PostgresStore) UnreadCounts(ctx context.Context, recipientID string) (map[string]int, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := pgIdent(s.schema, "messages")

	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id, count(*)
		   FROM `+messages+`
		  WHERE recipient_id = $1 AND NOT is_read AND NOT is_deleted
		  GROUP BY conversation_id`,
		recipientID,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			convID string
			n      int
		)
		if err := rows.Scan(&convID, &n); err != nil {
			return nil, storeErr(err)
		}
		out[convID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// storeErr maps driver-level failures into the boundary taxonomy. Context
// cancellation passes through untouched.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StoreUnavailableError{Err: err}
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
