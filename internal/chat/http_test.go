package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestRESTServer(t *testing.T) (*routerFixture, *httptest.Server) {
	t.Helper()

	f := newRouterFixture()
	mux := http.NewServeMux()
	NewHTTPHandler(testLogger(), f.router).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestHTTPHandler_MissedMessages(t *testing.T) {
	t.Parallel()

	f, srv := newTestRESTServer(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.router.SendMessage(ctx, SendMessageInput{
			SenderID: "alice", RecipientID: "bob", Content: "ping", SenderName: "alice@example.com",
		}); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/missed-messages/bob")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var body struct {
		UserID             string         `json:"userId"`
		MissedMessageCount int            `json:"missedMessageCount"`
		ConversationCounts map[string]int `json:"conversationCounts"`
		Summaries          []struct {
			SenderID      string `json:"senderId"`
			MessageCount  int    `json:"messageCount"`
			LatestMessage string `json:"latestMessage"`
		} `json:"summaries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.UserID != "bob" || body.MissedMessageCount != 2 {
		t.Fatalf("body=%+v", body)
	}
	if body.ConversationCounts[ConversationID("alice", "bob")] != 2 {
		t.Fatalf("counts=%v", body.ConversationCounts)
	}
	if len(body.Summaries) != 1 || body.Summaries[0].SenderID != "alice" || body.Summaries[0].MessageCount != 2 {
		t.Fatalf("summaries=%+v", body.Summaries)
	}
}

func TestHTTPHandler_MarkRead(t *testing.T) {
	t.Parallel()

	f, srv := newTestRESTServer(t)
	ctx := context.Background()

	if _, err := f.router.SendMessage(ctx, SendMessageInput{SenderID: "alice", RecipientID: "bob", Content: "ping"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	resp, err := http.Post(srv.URL+"/mark-missed-messages-read/bob", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var body struct {
		UserID     string `json:"userId"`
		MarkedRead int64  `json:"markedRead"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UserID != "bob" || body.MarkedRead != 1 {
		t.Fatalf("body=%+v", body)
	}

	counts, _ := f.store.UnreadCounts(ctx, "bob")
	if len(counts) != 0 {
		t.Fatalf("durable counts not cleared: %v", counts)
	}
	if n, _ := f.mailbox.Count(ctx, "bob"); n != 0 {
		t.Fatalf("mailbox not cleared: %d", n)
	}
}

func TestHTTPHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	_, srv := newTestRESTServer(t)

	// Invalid user id (contains the reserved delimiter).
	resp, err := http.Get(srv.URL + "/missed-messages/" + "a:b")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusBadRequest)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != CodeValidation {
		t.Fatalf("error=%q want=%q", body["error"], CodeValidation)
	}
}
