package chat

import (
	"context"
	"testing"
	"time"
)

func TestMemoryMailbox_EnqueueRetrieveAcknowledge(t *testing.T) {
	t.Parallel()

	mb := NewMemoryMailbox()
	ctx := context.Background()

	if _, err := mb.Enqueue(ctx, MissedMessage{}); ErrorCode(err) != CodeValidation {
		t.Fatalf("empty recipient: code=%q want=%q", ErrorCode(err), CodeValidation)
	}

	n, err := mb.Enqueue(ctx, MissedMessage{RecipientID: "bob", MessageID: "m1", SenderID: "alice", Content: "one"})
	if err != nil || n != 1 {
		t.Fatalf("Enqueue: n=%d err=%v", n, err)
	}
	n, err = mb.Enqueue(ctx, MissedMessage{RecipientID: "bob", MessageID: "m2", SenderID: "alice", Content: "two"})
	if err != nil || n != 2 {
		t.Fatalf("Enqueue: n=%d err=%v", n, err)
	}

	// Retrieve is non-destructive.
	for i := 0; i < 2; i++ {
		got, err := mb.Retrieve(ctx, "bob")
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if len(got) != 2 || got[0].MessageID != "m1" || got[1].MessageID != "m2" {
			t.Fatalf("retrieve #%d: %+v", i, got)
		}
	}

	if err := mb.Acknowledge(ctx, "bob"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if n, _ := mb.Count(ctx, "bob"); n != 0 {
		t.Fatalf("count=%d want=0", n)
	}

	// Acknowledging an empty queue is fine.
	if err := mb.Acknowledge(ctx, "bob"); err != nil {
		t.Fatalf("repeat Acknowledge: %v", err)
	}
}

func TestSummarizeBySender(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []MissedMessage{
		{SenderID: "alice", SenderName: "alice@example.com", ConversationID: "alice:bob", Content: "first", CreatedAt: base},
		{SenderID: "carol", SenderName: "carol@example.com", ConversationID: "bob:carol", Content: "hey", CreatedAt: base.Add(2 * time.Minute)},
		{SenderID: "alice", SenderName: "alice@example.com", ConversationID: "alice:bob", Content: "latest", CreatedAt: base.Add(5 * time.Minute)},
	}

	got := SummarizeBySender(entries)
	if len(got) != 2 {
		t.Fatalf("summaries=%d want=2", len(got))
	}

	// Freshest sender first.
	if got[0].SenderID != "alice" || got[1].SenderID != "carol" {
		t.Fatalf("order wrong: %q, %q", got[0].SenderID, got[1].SenderID)
	}
	if got[0].Count != 2 || got[0].Latest != "latest" {
		t.Fatalf("alice summary: %+v", got[0])
	}
	if got[1].Count != 1 || got[1].Latest != "hey" {
		t.Fatalf("carol summary: %+v", got[1])
	}

	if SummarizeBySender(nil) != nil {
		t.Fatalf("nil entries should produce nil summaries")
	}
}

func TestCountsByConversation(t *testing.T) {
	t.Parallel()

	entries := []MissedMessage{
		{ConversationID: "alice:bob"},
		{ConversationID: "alice:bob"},
		{ConversationID: "bob:carol"},
	}

	got := CountsByConversation(entries)
	if got["alice:bob"] != 2 || got["bob:carol"] != 1 {
		t.Fatalf("counts=%v", got)
	}
	if CountsByConversation(nil) != nil {
		t.Fatalf("nil entries should produce nil counts")
	}
}
