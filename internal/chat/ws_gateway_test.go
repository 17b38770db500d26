package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	v1 "ripple/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

func newGatewayFixture(t *testing.T, auth Authenticator) (*routerFixture, *httptest.Server) {
	t.Helper()

	t.Setenv("RIPPLE_WS_ORIGIN_REQUIRED", "false")
	t.Setenv("RIPPLE_WS_HEARTBEAT_INTERVAL", "1m")

	f := newRouterFixture()
	fanout := NewFanout(testLogger(), f.presence)
	gw := NewWSGateway(testLogger(), f.router, f.presence, f.hub, fanout, auth)

	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return f, ts
}

func dialChatWS(t *testing.T, baseHTTPURL string) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(baseHTTPURL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocolV1},
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") })
	return conn
}

func writeWS(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	b, err := json.Marshal(v1.Envelope{V: v1.Version, Type: typ, TS: time.Now().UTC(), Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("conn.Write: %v", err)
	}
}

func readWSUntil(t *testing.T, conn *websocket.Conn, typ string, maxReads int) v1.Envelope {
	t.Helper()

	for i := 0; i < maxReads; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, b, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("conn.Read: %v", err)
		}
		var env v1.Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("did not receive envelope type %q", typ)
	return v1.Envelope{}
}

func identifyWS(t *testing.T, conn *websocket.Conn, userID, email, token string) {
	t.Helper()

	writeWS(t, conn, v1.TypeUserIdentify, v1.UserIdentifyPayload{UserID: userID, Email: email, Token: token})
	ack := readWSUntil(t, conn, v1.TypeIdentified, 4)

	var p v1.IdentifiedPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		t.Fatalf("decode identified: %v", err)
	}
	if p.UserID != userID || p.ConnectionID == "" {
		t.Fatalf("identified ack: %+v", p)
	}
}

func TestWSGateway_IdentifyFirstStateMachine(t *testing.T) {
	_, ts := newGatewayFixture(t, InsecureAuthenticator{})
	conn := dialChatWS(t, ts.URL)

	// Pre-identify events are rejected without closing the connection.
	writeWS(t, conn, v1.TypeSendMessage, v1.SendMessagePayload{RecipientID: "bob", Content: "hi"})
	errEnv := readWSUntil(t, conn, v1.TypeMessageError, 2)

	var perr v1.MessageErrorPayload
	if err := json.Unmarshal(errEnv.Payload, &perr); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if perr.Error != CodeAuthorization {
		t.Fatalf("error=%q want=%q", perr.Error, CodeAuthorization)
	}

	// The connection is still usable.
	identifyWS(t, conn, "alice", "alice@example.com", "")
}

func TestWSGateway_SendAndReceiveLive(t *testing.T) {
	f, ts := newGatewayFixture(t, InsecureAuthenticator{})
	convID := ConversationID("alice", "bob")

	alice := dialChatWS(t, ts.URL)
	bob := dialChatWS(t, ts.URL)

	identifyWS(t, alice, "alice", "alice@example.com", "")
	identifyWS(t, bob, "bob", "bob@example.com", "")

	// Alice learns about bob's presence transition.
	online := readWSUntil(t, alice, v1.TypeUserOnline, 4)
	var pres v1.PresencePayload
	if err := json.Unmarshal(online.Payload, &pres); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if pres.UserID != "bob" {
		t.Fatalf("user_online for %q want bob", pres.UserID)
	}

	// Both join the conversation; join replies with a history window.
	writeWS(t, alice, v1.TypeJoinConversation, v1.JoinConversationPayload{ConversationID: convID})
	readWSUntil(t, alice, v1.TypeLoadMessagesResult, 4)
	writeWS(t, bob, v1.TypeJoinConversation, v1.JoinConversationPayload{ConversationID: convID})
	readWSUntil(t, bob, v1.TypeLoadMessagesResult, 4)

	writeWS(t, alice, v1.TypeSendMessage, v1.SendMessagePayload{RecipientID: "bob", Content: "hello bob"})

	// Sender gets a confirmation with delivery detail.
	sent := readWSUntil(t, alice, v1.TypeMessageSent, 4)
	var sentP v1.MessageSentPayload
	if err := json.Unmarshal(sent.Payload, &sentP); err != nil {
		t.Fatalf("decode message_sent: %v", err)
	}
	if !sentP.RecipientOnline || sentP.StoredAsMissed {
		t.Fatalf("message_sent: %+v", sentP)
	}
	if sentP.Message.Content != "hello bob" || sentP.Message.Seq != 1 {
		t.Fatalf("message: %+v", sentP.Message)
	}

	// Recipient gets the room broadcast.
	got := readWSUntil(t, bob, v1.TypeNewMessage, 6)
	var msgP v1.MessagePayload
	if err := json.Unmarshal(got.Payload, &msgP); err != nil {
		t.Fatalf("decode new_message: %v", err)
	}
	if msgP.SenderID != "alice" || msgP.ConversationID != convID {
		t.Fatalf("new_message: %+v", msgP)
	}

	// Nothing landed in the mailbox for a live delivery.
	if n, _ := f.mailbox.Count(context.Background(), "bob"); n != 0 {
		t.Fatalf("mailbox count=%d want=0", n)
	}
}

func TestWSGateway_MissedStateOnReconnect(t *testing.T) {
	f, ts := newGatewayFixture(t, InsecureAuthenticator{})
	ctx := context.Background()

	// A message accumulates while bob is offline.
	if _, err := f.router.SendMessage(ctx, SendMessageInput{
		SenderID: "alice", RecipientID: "bob", Content: "missed you", SenderName: "alice@example.com",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	bob := dialChatWS(t, ts.URL)
	identifyWS(t, bob, "bob", "bob@example.com", "")

	notif := readWSUntil(t, bob, v1.TypeMessageNotification, 4)
	var np v1.MessageNotificationPayload
	if err := json.Unmarshal(notif.Payload, &np); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if np.Kind != v1.NotificationMissedMessage || np.SenderID != "alice" || np.MessageCount != 1 || np.LatestMessage != "missed you" {
		t.Fatalf("notification: %+v", np)
	}

	badge := readWSUntil(t, bob, v1.TypeMissedCountUpdated, 4)
	var bp v1.MissedCountUpdatedPayload
	if err := json.Unmarshal(badge.Payload, &bp); err != nil {
		t.Fatalf("decode badge: %v", err)
	}
	if bp.MissedMessageCount != 1 {
		t.Fatalf("badge: %+v", bp)
	}

	// Reconnect alone does not acknowledge.
	if n, _ := f.mailbox.Count(ctx, "bob"); n != 1 {
		t.Fatalf("mailbox count=%d want=1", n)
	}

	// Explicit clear empties both layers and pushes a zeroed badge.
	writeWS(t, bob, v1.TypeClearNotifications, v1.ClearNotificationsPayload{UserID: "bob"})
	zero := readWSUntil(t, bob, v1.TypeMissedCountUpdated, 4)
	if err := json.Unmarshal(zero.Payload, &bp); err != nil {
		t.Fatalf("decode badge: %v", err)
	}
	if bp.MissedMessageCount != 0 {
		t.Fatalf("badge after clear: %+v", bp)
	}
	if n, _ := f.mailbox.Count(ctx, "bob"); n != 0 {
		t.Fatalf("mailbox not cleared: %d", n)
	}
}

func TestWSGateway_SpoofedSenderRejected(t *testing.T) {
	_, ts := newGatewayFixture(t, InsecureAuthenticator{})

	conn := dialChatWS(t, ts.URL)
	identifyWS(t, conn, "alice", "", "")

	writeWS(t, conn, v1.TypeSendMessage, v1.SendMessagePayload{
		SenderID:    "mallory",
		RecipientID: "bob",
		Content:     "hello from nowhere",
	})

	errEnv := readWSUntil(t, conn, v1.TypeMessageError, 2)
	var perr v1.MessageErrorPayload
	if err := json.Unmarshal(errEnv.Payload, &perr); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if perr.Error != CodeAuthorization {
		t.Fatalf("error=%q want=%q", perr.Error, CodeAuthorization)
	}
}

func TestWSGateway_HMACIdentityGate(t *testing.T) {
	auth, err := NewHMACAuthenticator(bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatalf("NewHMACAuthenticator: %v", err)
	}
	_, ts := newGatewayFixture(t, auth)

	// Wrong token closes the connection; the error envelope may or may not
	// flush before the close lands, so only the close is asserted.
	bad := dialChatWS(t, ts.URL)
	writeWS(t, bad, v1.TypeUserIdentify, v1.UserIdentifyPayload{UserID: "alice", Token: auth.TokenFor("bob")})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		if _, _, err := bad.Read(ctx); err != nil {
			break
		}
	}

	// Correct token binds the identity.
	good := dialChatWS(t, ts.URL)
	identifyWS(t, good, "alice", "", auth.TokenFor("alice"))
}
