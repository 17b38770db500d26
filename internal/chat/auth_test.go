package chat

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestHMACAuthenticator_VerifyRoundTrip(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte("k"), 32)
	auth, err := NewHMACAuthenticator(key)
	if err != nil {
		t.Fatalf("NewHMACAuthenticator: %v", err)
	}

	ctx := context.Background()
	tok := auth.TokenFor("alice")

	if err := auth.Verify(ctx, "alice", tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// Token is bound to the identity it was minted for.
	if err := auth.Verify(ctx, "bob", tok); ErrorCode(err) != CodeAuthorization {
		t.Fatalf("cross-identity token: code=%q want=%q", ErrorCode(err), CodeAuthorization)
	}
	if err := auth.Verify(ctx, "alice", "not-hex!!"); ErrorCode(err) != CodeAuthorization {
		t.Fatalf("malformed token: code=%q want=%q", ErrorCode(err), CodeAuthorization)
	}
	if err := auth.Verify(ctx, "alice", ""); ErrorCode(err) != CodeAuthorization {
		t.Fatalf("missing token: code=%q want=%q", ErrorCode(err), CodeAuthorization)
	}
	if err := auth.Verify(ctx, "", tok); ErrorCode(err) != CodeValidation {
		t.Fatalf("empty identity: code=%q want=%q", ErrorCode(err), CodeValidation)
	}
}

func TestNewHMACAuthenticator_KeyPolicy(t *testing.T) {
	t.Parallel()

	if _, err := NewHMACAuthenticator(nil); !errors.Is(err, ErrAuthKeyMissing) {
		t.Fatalf("nil key: %v", err)
	}
	if _, err := NewHMACAuthenticator([]byte("too-short")); !errors.Is(err, ErrAuthKeyTooShort) {
		t.Fatalf("short key: %v", err)
	}
	if _, err := NewHMACAuthenticator(bytes.Repeat([]byte("x"), 32)); err != nil {
		t.Fatalf("32-byte key: %v", err)
	}
}

func TestInsecureAuthenticator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var auth InsecureAuthenticator

	if err := auth.Verify(ctx, "alice", ""); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := auth.Verify(ctx, "  ", "anything"); ErrorCode(err) != CodeValidation {
		t.Fatalf("blank identity: code=%q want=%q", ErrorCode(err), CodeValidation)
	}
}
