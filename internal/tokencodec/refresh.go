// Package tokencodec implements the three token formats spec.md §2/§3
// describe: the signed refresh-token blob, the short-TTL access token, and
// invitation/pairing tokens.
package tokencodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/crypto"
)

// ErrMalformedToken is returned for any refresh blob that doesn't parse as
// "<payload>.<sig>", has invalid payload JSON, or fails signature
// verification.
var ErrMalformedToken = errors.New("tokencodec: malformed refresh token")

// RefreshPayload is the JSON payload embedded in a refresh-token blob, per
// spec §3: "{sessionId, userId, tokenNonce, expiresAt(epoch-s)}".
type RefreshPayload struct {
	SessionID  uuid.UUID `json:"sessionId"`
	UserID     uuid.UUID `json:"userId"`
	TokenNonce string    `json:"tokenNonce"`
	ExpiresAt  int64     `json:"expiresAt"`
}

// SignRefreshToken encodes and signs a refresh-token blob:
// base64url(payload) + "." + base64url(HMAC-SHA-256(base64url(payload), secret)).
func SignRefreshToken(payload RefreshPayload, secret string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	encoded := crypto.B64Encode(raw)
	sig := crypto.HMACSign([]byte(encoded), secret)
	return encoded + "." + sig, nil
}

// VerifyRefreshToken parses and verifies a refresh-token blob. On success it
// returns the decoded payload; on any failure (malformed, tampered, or
// expired) it returns an error (ErrMalformedToken for a malformed or tampered
// blob, a separate "refresh token expired" error for expiry) without the caller
// needing to look anything up in the store first (spec §8: "constant-time
// comparison returns false and no session lookup happens").
func VerifyRefreshToken(blob, secret string) (RefreshPayload, error) {
	parts := strings.SplitN(blob, ".", 2)
	if len(parts) != 2 {
		return RefreshPayload{}, ErrMalformedToken
	}
	encoded, sig := parts[0], parts[1]
	if !crypto.HMACVerify([]byte(encoded), secret, sig) {
		return RefreshPayload{}, ErrMalformedToken
	}
	raw, err := crypto.B64Decode(encoded)
	if err != nil {
		return RefreshPayload{}, ErrMalformedToken
	}
	var payload RefreshPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return RefreshPayload{}, ErrMalformedToken
	}
	if payload.ExpiresAt <= time.Now().Unix() {
		return RefreshPayload{}, fmt.Errorf("tokencodec: refresh token expired")
	}
	return payload, nil
}

// HashBlob returns the verifier stored on the session row
// (Session.refreshTokenHash), the sha-256 of the entire signed blob.
func HashBlob(blob string) string {
	return crypto.SHA256Hex(blob)
}

// NewTokenNonce returns a fresh random nonce for session rotation.
func NewTokenNonce() (string, error) {
	return crypto.RandomToken(16)
}
