package chat

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Authenticator is the identity-gate boundary. Token issuance and account
// management live outside the messaging core; the gateway only needs a
// yes/no on "does this bearer credential prove the claimed identity".
type Authenticator interface {
	Verify(ctx context.Context, claimedUserID, token string) error
}

var (
	ErrAuthKeyMissing  = errors.New("chat: auth HMAC key missing")
	ErrAuthKeyTooShort = errors.New("chat: auth HMAC key too short")
)

// hmacKeyMinBytes: minimum recommended secret size for HMAC-SHA256.
// Measured in bytes (not runes) because the key is used as raw bytes.
const hmacKeyMinBytes = 32

// HMACAuthenticator verifies tokens of the form hex(HMAC-SHA256(key, userID)).
// The external identity service holds the same key and mints tokens at login.
type HMACAuthenticator struct {
	key []byte
}

// NewHMACAuthenticator validates the key and constructs the verifier.
func NewHMACAuthenticator(key []byte) (*HMACAuthenticator, error) {
	if len(key) == 0 {
		return nil, ErrAuthKeyMissing
	}
	if len(key) < hmacKeyMinBytes {
		return nil, ErrAuthKeyTooShort
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &HMACAuthenticator{key: k}, nil
}

// Verify checks the token against the claimed user id in constant time.
func (a *HMACAuthenticator) Verify(_ context.Context, claimedUserID, token string) error {
	claimedUserID = strings.TrimSpace(claimedUserID)
	token = strings.TrimSpace(token)
	if claimedUserID == "" {
		return &ValidationError{Field: "userId", Reason: "empty user id"}
	}
	if token == "" {
		return &AuthorizationError{Reason: "missing token"}
	}

	got, err := hex.DecodeString(token)
	if err != nil {
		return &AuthorizationError{Reason: "malformed token"}
	}

	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(claimedUserID))
	want := mac.Sum(nil)

	if !hmac.Equal(got, want) {
		return &AuthorizationError{Reason: "token does not match identity"}
	}
	return nil
}

// TokenFor mints a token for userID. Exposed for tests and local tooling;
// production tokens come from the identity service.
func (a *HMACAuthenticator) TokenFor(userID string) string {
	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

// InsecureAuthenticator trusts the claimed identity without a credential.
// Dev-only; the gateway logs loudly when it is active.
type InsecureAuthenticator struct{}

// Verify accepts any non-empty claimed identity.
func (InsecureAuthenticator) Verify(_ context.Context, claimedUserID, _ string) error {
	if strings.TrimSpace(claimedUserID) == "" {
		return &ValidationError{Field: "userId", Reason: "empty user id"}
	}
	return nil
}
