// Package crypto holds the signing, comparison, and random-token primitives
// shared by the token codec, OAuth coordinator, and secret vault. The HMAC
// pattern here is grounded on the teacher's tenant_headers.go
// ValidateTenantHeaders (hmac.New(sha256.New, secret) + hmac.Equal).
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrInvalidSignature is returned when a signed blob fails verification.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// B64Encode encodes bytes as unpadded base64url, the encoding used for every
// signed blob in this system (refresh tokens, OAuth cookies, pairing tokens).
func B64Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// B64Decode decodes unpadded base64url.
func B64Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// HMACSign returns the base64url-encoded HMAC-SHA256 of data under secret.
func HMACSign(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return B64Encode(mac.Sum(nil))
}

// HMACVerify reports whether sig is the valid HMAC-SHA256 of data under
// secret, using a constant-time comparison. Per spec §8, a tampered payload
// must fail this check without triggering any subsequent store lookup.
func HMACVerify(data []byte, secret, sig string) bool {
	expectedRaw := hmacRaw(data, secret)
	sigRaw, err := B64Decode(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(expectedRaw, sigRaw)
}

func hmacRaw(data []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return mac.Sum(nil)
}

// SHA256Hex returns the hex-free raw sha256 digest of s, base64url-encoded.
// Used to derive the row-stored refresh-token verifier from the full signed
// blob (spec §3 "RefreshToken ... sha-256 of the whole blob is stored").
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return B64Encode(sum[:])
}

// ConstantTimeEqual compares two strings in constant time.
func ConstantTimeEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// RandomToken returns a cryptographically random base64url token of n raw
// bytes (longer than n once encoded).
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return B64Encode(buf), nil
}

// MustRandomToken panics on entropy-source failure; used only at process
// start (e.g. generating a one-shot nonce during a request is always via
// RandomToken with error handling — this exists for startup-only call sites
// where failure is already fatal).
func MustRandomToken(n int) string {
	tok, err := RandomToken(n)
	if err != nil {
		panic(err)
	}
	return tok
}
