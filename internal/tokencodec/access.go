package tokencodec

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidAccessToken is returned when an access token fails to parse or
// verify.
var ErrInvalidAccessToken = errors.New("tokencodec: invalid access token")

// AccessClaims is the short-TTL access-token payload from spec §3:
// "{userId, email, sessionId, exp}".
type AccessClaims struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	SessionID uuid.UUID `json:"sessionId"`
	jwt.RegisteredClaims
}

// SignAccessToken issues a short-lived HS256 access token. The teacher's
// auth/jwt.go already discriminates HS256 (backend) from RS256 (upstream
// IdP) tokens on the verification side; this system is the token issuer, so
// it only ever signs HS256.
func SignAccessToken(userID uuid.UUID, email string, sessionID uuid.UUID, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}

// VerifyAccessToken validates and decodes an access token signed by
// SignAccessToken.
func VerifyAccessToken(tokenString, secret string) (AccessClaims, error) {
	claims := AccessClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidAccessToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return AccessClaims{}, ErrInvalidAccessToken
	}
	return claims, nil
}
