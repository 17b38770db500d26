package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	v1 "ripple/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

const (
	wsSubprotocolV1 = "ripple.chat.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// WSGateway is the WebSocket entrypoint for the messaging core.
//
// It enforces origin policy, subprotocol selection, rate limits, heartbeats,
// and the identify-first session state machine, then routes validated
// envelopes to the Router.
type WSGateway struct {
	log      *slog.Logger
	router   *Router
	presence *Presence
	hub      *Hub
	fanout   *Fanout
	auth     Authenticator

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	rateEvents int
	rateWindow time.Duration
}

// NewWSGateway constructs a gateway with secure defaults.
func NewWSGateway(log *slog.Logger, router *Router, presence *Presence, hub *Hub, fanout *Fanout, auth Authenticator) *WSGateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if auth == nil {
		auth = InsecureAuthenticator{}
		log.Warn("ws.auth.insecure", "reason", "no authenticator configured")
	}

	g := &WSGateway{
		log:      log,
		router:   router,
		presence: presence,
		hub:      hub,
		fanout:   fanout,
		auth:     auth,
	}

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS verification). It is not an origin policy.
	g.devInsecure = envBoolWS("RIPPLE_WS_DEV_INSECURE", false)

	g.originRequired = envBoolWS("RIPPLE_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("RIPPLE_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept enforces its own origin policy:
	// - same-host is ok
	// - cross-origin requires OriginPatterns (host patterns)
	// We derive these patterns from allowed origins so the two layers agree.
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)

	g.writeTimeout = envDurationWS("RIPPLE_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("RIPPLE_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("RIPPLE_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("RIPPLE_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("RIPPLE_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	g.rateEvents = envIntWS("RIPPLE_WS_RATE_EVENTS", rateLimitEvents)
	g.rateWindow = envDurationWS("RIPPLE_WS_RATE_WINDOW", rateLimitWindow)

	return g
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the realtime loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{wsSubprotocolV1},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	connectionID := NewConnectionID(time.Now().UTC())
	client := NewClient(connectionID, g.sendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &wsSession{client: client}

	// shutdown is idempotent. It does NOT close client.Send.
	// Ordering matters: membership and presence removal happen before
	// client.Close so broadcasters never hold a closing client.
	shutdown := func(code websocket.StatusCode, reason string) {
		sess.closeOnce.Do(func() {
			sess.leaveAllRooms()

			if sess.identified() {
				wentOffline := g.presence.Remove(client.UserID, client.ConnectionID)
				if wentOffline {
					g.fanout.PresenceChanged(client.UserID, false, time.Now().UTC())
				}
			}

			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "connection_id", connectionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "connection_id", connectionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(client, CodeValidation, "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "connection_id", connectionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			g.trySendError(client, CodeValidation, "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(client, CodeValidation, err.Error())
			continue readLoop
		}

		if env.Type == v1.TypeUserIdentify {
			if err := g.onIdentify(ctx, sess, env, now); err != nil {
				g.trySendError(client, ErrorCode(err), err.Error())
				shutdown(websocket.StatusPolicyViolation, "identify failed")
				break readLoop
			}
			continue readLoop
		}

		if !sess.identified() {
			g.trySendError(client, CodeAuthorization, "identify first")
			continue readLoop
		}

		switch env.Type {
		case v1.TypeJoinConversation:
			if err := g.onJoin(ctx, sess, env, now); err != nil {
				g.trySendError(client, ErrorCode(err), err.Error())
			}

		case v1.TypeLoadMessages:
			if err := g.onLoadMessages(ctx, sess, env, now); err != nil {
				g.trySendError(client, ErrorCode(err), err.Error())
			}

		case v1.TypeSendMessage:
			if err := g.onSendMessage(ctx, sess, env, now); err != nil {
				g.trySendError(client, ErrorCode(err), err.Error())
			}

		case v1.TypeTypingStart, v1.TypeTypingStop:
			if err := g.onTyping(sess, env, now); err != nil {
				g.trySendError(client, ErrorCode(err), err.Error())
			}

		case v1.TypeDeleteMessage:
			if err := g.onDeleteMessage(ctx, sess, env, now); err != nil {
				g.trySendError(client, ErrorCode(err), err.Error())
			}

		case v1.TypeClearNotifications:
			if err := g.onClearNotifications(ctx, sess, env, now); err != nil {
				g.trySendError(client, ErrorCode(err), err.Error())
			}

		default:
			g.trySendError(client, CodeValidation, fmt.Sprintf("unsupported inbound type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- session state ----

// wsSession tracks per-connection mutable state owned by the read loop:
// the identity binding and the set of joined conversation rooms.
type wsSession struct {
	client *Client

	mu     sync.Mutex
	bound  bool
	joined map[string]*Room

	closeOnce sync.Once
}

func (s *wsSession) identified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *wsSession) bind(userID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = true
	s.client.UserID = userID
	s.client.Email = email
}

func (s *wsSession) rememberRoom(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined == nil {
		s.joined = make(map[string]*Room, 2)
	}
	s.joined[room.ID] = room
}

func (s *wsSession) leaveAllRooms() {
	s.mu.Lock()
	rooms := s.joined
	s.joined = nil
	s.mu.Unlock()

	for _, room := range rooms {
		room.Leave(s.client.ConnectionID)
	}
}

// ---- handlers ----

func (g *WSGateway) onIdentify(ctx context.Context, sess *wsSession, env v1.Envelope, now time.Time) error {
	var p v1.UserIdentifyPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &ValidationError{Field: "payload", Reason: "invalid payload"}
	}

	userID, err := ValidateUserID("userId", p.UserID)
	if err != nil {
		return err
	}

	if sess.identified() {
		if sess.client.UserID != userID {
			return &AuthorizationError{Reason: "connection already bound to another identity"}
		}
		// Re-identify with the same identity is a harmless refresh.
		return g.enqueueOrErr(sess.client, newEnvelope(v1.TypeIdentified, v1.IdentifiedPayload{
			ConnectionID: sess.client.ConnectionID,
			UserID:       userID,
		}, now), "identified")
	}

	if err := g.auth.Verify(ctx, userID, p.Token); err != nil {
		return err
	}

	sess.bind(userID, strings.TrimSpace(p.Email))

	wentOnline := g.presence.Add(sess.client)
	if wentOnline {
		g.fanout.PresenceChanged(userID, true, now)
	}

	if err := g.enqueueOrErr(sess.client, newEnvelope(v1.TypeIdentified, v1.IdentifiedPayload{
		ConnectionID: sess.client.ConnectionID,
		UserID:       userID,
	}, now), "identified"); err != nil {
		return err
	}

	g.pushMissedState(ctx, sess.client, now)
	return nil
}

// pushMissedState delivers the grouped missed-message summary on reconnect.
// It never acknowledges: the user must see the notification first.
func (g *WSGateway) pushMissedState(ctx context.Context, client *Client, now time.Time) {
	summaries, counts, err := g.router.MissedState(ctx, client.UserID)
	if err != nil {
		g.log.Warn("ws.missed_state.fail", "user_id", client.UserID, "err", err)
		return
	}

	for _, s := range summaries {
		client.TryEnqueue(newEnvelope(v1.TypeMessageNotification, v1.MessageNotificationPayload{
			Kind:           v1.NotificationMissedMessage,
			SenderID:       s.SenderID,
			SenderName:     s.SenderName,
			MessageCount:   s.Count,
			LatestMessage:  s.Latest,
			ConversationID: s.ConversationID,
		}, now))
	}

	if len(counts) > 0 {
		total := 0
		for _, n := range counts {
			total += n
		}
		client.TryEnqueue(newEnvelope(v1.TypeMissedCountUpdated, v1.MissedCountUpdatedPayload{
			UserID:             client.UserID,
			MissedMessageCount: total,
			ConversationCounts: counts,
		}, now))
	}
}

func (g *WSGateway) onJoin(ctx context.Context, sess *wsSession, env v1.Envelope, now time.Time) error {
	var p v1.JoinConversationPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &ValidationError{Field: "payload", Reason: "invalid payload"}
	}

	convID := strings.TrimSpace(p.ConversationID)
	if convID == "" {
		return &ValidationError{Field: "conversationId", Reason: "missing conversation id"}
	}

	// History authorization doubles as the membership check: only the two
	// participants resolve the conversation id.
	out, err := g.router.History(ctx, sess.client.UserID, convID, nil, 0)
	if err != nil {
		return err
	}

	room := g.hub.Room(convID)
	room.Join(sess.client)
	sess.rememberRoom(room)

	return g.enqueueOrErr(sess.client, loadMessagesEnvelope(convID, out, now), "history")
}

func (g *WSGateway) onLoadMessages(ctx context.Context, sess *wsSession, env v1.Envelope, now time.Time) error {
	var p v1.LoadMessagesPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &ValidationError{Field: "payload", Reason: "invalid payload"}
	}

	out, err := g.router.History(ctx, sess.client.UserID, strings.TrimSpace(p.ConversationID), p.AfterSeq, p.Limit)
	if err != nil {
		return err
	}

	return g.enqueueOrErr(sess.client, loadMessagesEnvelope(strings.TrimSpace(p.ConversationID), out, now), "history")
}

func (g *WSGateway) onSendMessage(ctx context.Context, sess *wsSession, env v1.Envelope, now time.Time) error {
	var p v1.SendMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &ValidationError{Field: "payload", Reason: "invalid payload"}
	}

	// The bound identity is authoritative; a spoofed senderId is rejected.
	if sid := strings.TrimSpace(p.SenderID); sid != "" && sid != sess.client.UserID {
		return &AuthorizationError{Reason: "senderId does not match connection identity"}
	}

	res, err := g.router.SendMessage(ctx, SendMessageInput{
		SenderID:    sess.client.UserID,
		RecipientID: p.RecipientID,
		Content:     p.Content,
		SenderName:  sess.client.DisplayName(),
		Now:         now,
	})
	if err != nil {
		return err
	}

	// Sender-only confirmation, distinct from the room broadcast.
	sender := v1.UserRef{ID: sess.client.UserID, Email: sess.client.Email}
	recipient := v1.UserRef{ID: res.Message.RecipientID}
	return g.enqueueOrErr(sess.client, newEnvelope(v1.TypeMessageSent, v1.MessageSentPayload{
		Message:         messagePayload(res.Message, sender, recipient),
		RecipientOnline: res.RecipientOnline,
		StoredAsMissed:  res.StoredAsMissed,
	}, now), "message_sent")
}

func (g *WSGateway) onTyping(sess *wsSession, env v1.Envelope, now time.Time) error {
	var p v1.TypingPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &ValidationError{Field: "payload", Reason: "invalid payload"}
	}

	recipientID, err := ValidateUserID("recipientId", p.RecipientID)
	if err != nil {
		return err
	}

	// Ephemeral: relayed to the recipient's live connections, never persisted.
	relay := newEnvelope(env.Type, v1.TypingPayload{
		ConversationID: p.ConversationID,
		RecipientID:    recipientID,
		UserID:         sess.client.UserID,
	}, now)
	for _, c := range g.presence.ConnectionsFor(recipientID) {
		c.TryEnqueue(relay)
	}
	return nil
}

func (g *WSGateway) onDeleteMessage(ctx context.Context, sess *wsSession, env v1.Envelope, now time.Time) error {
	var p v1.DeleteMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &ValidationError{Field: "payload", Reason: "invalid payload"}
	}

	if db := strings.TrimSpace(p.DeletedBy); db != "" && db != sess.client.UserID {
		return &AuthorizationError{Reason: "deletedBy does not match connection identity"}
	}

	_, err := g.router.DeleteMessage(ctx, strings.TrimSpace(p.MessageID), sess.client.UserID, now)
	return err
}

func (g *WSGateway) onClearNotifications(ctx context.Context, sess *wsSession, env v1.Envelope, now time.Time) error {
	var p v1.ClearNotificationsPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &ValidationError{Field: "payload", Reason: "invalid payload"}
	}

	if uid := strings.TrimSpace(p.UserID); uid != "" && uid != sess.client.UserID {
		return &AuthorizationError{Reason: "userId does not match connection identity"}
	}

	_, err := g.router.Acknowledge(ctx, sess.client.UserID, now)
	return err
}

// ---- send helpers ----

func loadMessagesEnvelope(conversationID string, out ListMessagesResult, now time.Time) v1.Envelope {
	msgs := make([]v1.MessagePayload, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, messagePayload(m, v1.UserRef{ID: m.SenderID}, v1.UserRef{ID: m.RecipientID}))
	}
	return newEnvelope(v1.TypeLoadMessagesResult, v1.LoadMessagesResultPayload{
		ConversationID: conversationID,
		Messages:       msgs,
		HasMore:        out.HasMore,
	}, now)
}

func (g *WSGateway) trySendError(client *Client, code, details string) {
	env := newEnvelope(v1.TypeMessageError, v1.MessageErrorPayload{Error: code, Details: details}, time.Now().UTC())
	_ = client.TryEnqueue(env)
}

// enqueueOrErr reports backpressure on direct replies as an error, unlike
// broadcast paths which silently drop.
func (g *WSGateway) enqueueOrErr(client *Client, env v1.Envelope, what string) error {
	if !client.TryEnqueue(env) {
		return fmt.Errorf("backpressure: %s", what)
	}
	return nil
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	// JSON decode errors are typically returned by json.Unmarshal, not conn.Read.
	// This fallback exists for robustness when error strings are propagated.
	s := err.Error()
	if strings.Contains(s, "unexpected end of JSON input") || strings.Contains(s, "invalid character") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using filepath.Match patterns.
	// We keep this strict: only hosts extracted from the allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
