package chat

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(connID, userID string) *Client {
	c := NewClient(connID, 8)
	c.UserID = userID
	return c
}

func TestPresence_TransitionOncePerUser(t *testing.T) {
	t.Parallel()

	p := NewPresence(testLogger())

	// Three tabs, one online transition.
	if !p.Add(testClient("c1", "alice")) {
		t.Fatalf("first connection should transition to online")
	}
	if p.Add(testClient("c2", "alice")) {
		t.Fatalf("second connection must not re-fire online")
	}
	if p.Add(testClient("c3", "alice")) {
		t.Fatalf("third connection must not re-fire online")
	}
	if !p.IsOnline("alice") {
		t.Fatalf("alice should be online")
	}
	if got := len(p.ConnectionsFor("alice")); got != 3 {
		t.Fatalf("connections=%d want=3", got)
	}

	// Offline only when the last connection is gone.
	if p.Remove("alice", "c1") {
		t.Fatalf("offline must not fire while connections remain")
	}
	if p.Remove("alice", "c2") {
		t.Fatalf("offline must not fire while connections remain")
	}
	if !p.Remove("alice", "c3") {
		t.Fatalf("last removal should transition to offline")
	}
	if p.IsOnline("alice") {
		t.Fatalf("alice should be offline")
	}
}

func TestPresence_RemoveUnknownIsNoop(t *testing.T) {
	t.Parallel()

	p := NewPresence(testLogger())
	p.Add(testClient("c1", "alice"))

	if p.Remove("alice", "never-registered") {
		t.Fatalf("removing an unknown connection must not fire offline")
	}
	if p.Remove("bob", "c1") {
		t.Fatalf("removing for an unknown user must not fire offline")
	}
	if !p.IsOnline("alice") {
		t.Fatalf("alice should still be online")
	}

	// Double-removal of the same connection fires offline once.
	if !p.Remove("alice", "c1") {
		t.Fatalf("expected offline transition")
	}
	if p.Remove("alice", "c1") {
		t.Fatalf("second removal must be a no-op")
	}
}

func TestPresence_AllExceptExcludesSubject(t *testing.T) {
	t.Parallel()

	p := NewPresence(testLogger())
	p.Add(testClient("a1", "alice"))
	p.Add(testClient("a2", "alice"))
	p.Add(testClient("b1", "bob"))

	for _, c := range p.AllExcept("alice") {
		if c.UserID == "alice" {
			t.Fatalf("AllExcept returned the subject's own connection %q", c.ConnectionID)
		}
	}
	if got := len(p.AllExcept("alice")); got != 1 {
		t.Fatalf("AllExcept(alice)=%d want=1", got)
	}
	if got := len(p.AllExcept("nobody")); got != 3 {
		t.Fatalf("AllExcept(nobody)=%d want=3", got)
	}
}
