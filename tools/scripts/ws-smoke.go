// Package main provides a CI-friendly WebSocket smoke test for the Ripple
// messaging server.
//
// It validates:
//   - handshake + subprotocol selection
//   - identify -> identified binding
//   - presence fanout (user_online on the other client)
//   - join -> history load
//   - send -> message_sent confirmation
//   - new_message fanout to the recipient
//   - clear_notification_count -> zeroed badge
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "ripple/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

const (
	defaultSubprotocol = "ripple.chat.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

type smokeClient struct {
	name   string
	userID string
	conn   *websocket.Conn
	connID string

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		userA   = flag.String("user-a", "smoke-alice", "First user identity")
		userB   = flag.String("user-b", "smoke-bob", "Second user identity")
		tokenA  = flag.String("token-a", "", "Bearer token for user A (required when the server enforces auth)")
		tokenB  = flag.String("token-b", "", "Bearer token for user B")
		text    = flag.String("text", "hello ripple 👋", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	if *userA == *userB {
		fatalf("-user-a and -user-b must differ")
	}

	root := context.Background()

	a := mustConnect(root, "A", *wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	mustIdentify(root, a, *userA, *tokenA, *timeout)
	mustIdentify(root, b, *userB, *tokenB, *timeout)

	if *verbose {
		fmt.Printf("identified: A=%s(%s) B=%s(%s)\n", a.userID, a.connID, b.userID, b.connID)
	}

	// A sees B come online.
	mustAssertPresence(root, a, *userB, *timeout)

	convID := conversationID(*userA, *userB)
	mustJoin(root, a, convID, *timeout)
	mustJoin(root, b, convID, *timeout)

	seq := mustSendAndAssertSent(root, a, *userB, *text, *timeout)
	mustAssertNewMessage(root, b, convID, *userA, *text, seq, *timeout)

	mustClearNotifications(root, b, *timeout)

	fmt.Printf("OK: A=%s B=%s conv_id=%s seq=%d\n", a.userID, b.userID, convID, seq)
}

// conversationID mirrors the server's pair resolution: sorted "lo:hi".
func conversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, defaultSubprotocol)
	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func mustIdentify(parent context.Context, c *smokeClient, userID, token string, stepTimeout time.Duration) {
	env := v1.Envelope{
		V:    v1.Version,
		Type: v1.TypeUserIdentify,
		ID:   fmt.Sprintf("%s-identify", c.name),
		TS:   time.Now().UTC(),
		Payload: mustJSON(v1.UserIdentifyPayload{
			UserID: userID,
			Email:  userID + "@smoke.local",
			Token:  token,
		}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	ack := c.mustReadUntilType(parent, v1.TypeIdentified, stepTimeout, nil)

	var p v1.IdentifiedPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal identified payload (%s): %v", c.name, err)
	}
	if p.UserID != userID {
		fatalf("identified user mismatch (%s): got=%q want=%q", c.name, p.UserID, userID)
	}
	if strings.TrimSpace(p.ConnectionID) == "" {
		fatalf("identified missing connection id (%s)", c.name)
	}
	c.userID = userID
	c.connID = p.ConnectionID
}

func mustAssertPresence(parent context.Context, c *smokeClient, wantUser string, stepTimeout time.Duration) {
	skip := map[string]struct{}{
		v1.TypeMessageNotification: {},
		v1.TypeMissedCountUpdated:  {},
	}
	env := c.mustReadUntilType(parent, v1.TypeUserOnline, stepTimeout, skip)

	var p v1.PresencePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal presence payload (%s): %v", c.name, err)
	}
	if p.UserID != wantUser {
		fatalf("user_online mismatch (%s): got=%q want=%q", c.name, p.UserID, wantUser)
	}
}

func mustJoin(parent context.Context, c *smokeClient, convID string, stepTimeout time.Duration) {
	env := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeJoinConversation,
		ID:      fmt.Sprintf("%s-join", c.name),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.JoinConversationPayload{ConversationID: convID}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	skip := map[string]struct{}{
		v1.TypeUserOnline:          {},
		v1.TypeMessageNotification: {},
		v1.TypeMissedCountUpdated:  {},
	}
	hist := c.mustReadUntilType(parent, v1.TypeLoadMessagesResult, stepTimeout, skip)

	var p v1.LoadMessagesResultPayload
	if err := json.Unmarshal(hist.Payload, &p); err != nil {
		fatalf("unmarshal history payload (%s): %v", c.name, err)
	}
	if p.ConversationID != convID {
		fatalf("history conv_id mismatch (%s): got=%q want=%q", c.name, p.ConversationID, convID)
	}
}

func mustSendAndAssertSent(parent context.Context, c *smokeClient, recipientID, text string, stepTimeout time.Duration) int64 {
	env := v1.Envelope{
		V:    v1.Version,
		Type: v1.TypeSendMessage,
		ID:   fmt.Sprintf("%s-send", c.name),
		TS:   time.Now().UTC(),
		Payload: mustJSON(v1.SendMessagePayload{
			RecipientID: recipientID,
			Content:     text,
		}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	skip := map[string]struct{}{v1.TypeNewMessage: {}}
	sent := c.mustReadUntilType(parent, v1.TypeMessageSent, stepTimeout, skip)

	var p v1.MessageSentPayload
	if err := json.Unmarshal(sent.Payload, &p); err != nil {
		fatalf("unmarshal message_sent payload (%s): %v", c.name, err)
	}
	if !p.RecipientOnline || p.StoredAsMissed {
		fatalf("message_sent delivery mismatch (%s): online=%v missed=%v", c.name, p.RecipientOnline, p.StoredAsMissed)
	}
	if p.Message.Content != text {
		fatalf("message_sent content mismatch (%s): got=%q want=%q", c.name, p.Message.Content, text)
	}
	if p.Message.Seq <= 0 {
		fatalf("message_sent invalid seq (%s): %d", c.name, p.Message.Seq)
	}
	return p.Message.Seq
}

func mustAssertNewMessage(parent context.Context, c *smokeClient, convID, senderID, text string, seq int64, stepTimeout time.Duration) {
	skip := map[string]struct{}{v1.TypeNewMessageNotification: {}}
	env := c.mustReadUntilType(parent, v1.TypeNewMessage, stepTimeout, skip)

	var p v1.MessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal new_message payload (%s): %v", c.name, err)
	}
	if p.ConversationID != convID {
		fatalf("new_message conv_id mismatch (%s): got=%q want=%q", c.name, p.ConversationID, convID)
	}
	if p.SenderID != senderID {
		fatalf("new_message sender mismatch (%s): got=%q want=%q", c.name, p.SenderID, senderID)
	}
	if p.Content != text {
		fatalf("new_message content mismatch (%s): got=%q want=%q", c.name, p.Content, text)
	}
	if p.Seq != seq {
		fatalf("new_message seq mismatch (%s): got=%d want=%d", c.name, p.Seq, seq)
	}
	if p.Timestamp.IsZero() {
		fatalf("new_message timestamp missing/zero (%s)", c.name)
	}
}

func mustClearNotifications(parent context.Context, c *smokeClient, stepTimeout time.Duration) {
	env := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeClearNotifications,
		ID:      fmt.Sprintf("%s-clear", c.name),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.ClearNotificationsPayload{UserID: c.userID}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	skip := map[string]struct{}{
		v1.TypeNewMessage:             {},
		v1.TypeNewMessageNotification: {},
	}
	badge := c.mustReadUntilType(parent, v1.TypeMissedCountUpdated, stepTimeout, skip)

	var p v1.MissedCountUpdatedPayload
	if err := json.Unmarshal(badge.Payload, &p); err != nil {
		fatalf("unmarshal badge payload (%s): %v", c.name, err)
	}
	if p.MissedMessageCount != 0 {
		fatalf("badge not zeroed after clear (%s): %d", c.name, p.MissedMessageCount)
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration, skipTypes map[string]struct{}) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeMessageError {
				var ep v1.MessageErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q details=%q", c.name, ep.Error, ep.Details)
			}
			if skipTypes != nil {
				if _, ok := skipTypes[env.Type]; ok {
					continue
				}
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
