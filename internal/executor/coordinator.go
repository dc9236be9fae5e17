// Package executor implements the supplemented executor-pairing
// issue/redeem/revoke flow (glossary: "Pairing token — a one-shot opaque
// token used by a worker (executor/agent) to exchange for a long-lived
// executor token"). Grounded on tokencodec's `<uuid>.<random>` pairing
// token shape and spec §8's "revoke executor is idempotent" property.
package executor

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/crypto"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/tokencodec"
)

// Coordinator implements the pairing-token issue/redeem/revoke flow.
type Coordinator struct {
	Store store.Store
}

func New(st store.Store) *Coordinator {
	return &Coordinator{Store: st}
}

// Issue mints a fresh pairing token for a named executor slot and persists
// only its hash.
func (c *Coordinator) Issue(ctx context.Context, tc store.TenantCtx, name string) (string, store.ExecutorPairing, error) {
	token, parsed, err := tokencodec.NewPairingToken()
	if err != nil {
		return "", store.ExecutorPairing{}, apperr.ErrInternal
	}
	secretHash := crypto.SHA256Hex(parsed.Secret)

	pairing, err := c.Store.CreateExecutorPairing(ctx, tc, name, secretHash)
	if err != nil {
		return "", store.ExecutorPairing{}, apperr.ErrInternal
	}
	return token, pairing, nil
}

// Redeem exchanges a one-shot pairing token for a long-lived executor
// token, returning the bearer token the executor worker must present on
// subsequent requests (`<tokenId>.<secret>`, the same shape as the pairing
// token it was exchanged from) and the corresponding row.
func (c *Coordinator) Redeem(ctx context.Context, pairingToken string) (string, store.ExecutorToken, error) {
	parsed, err := tokencodec.ParsePairingToken(pairingToken)
	if err != nil {
		return "", store.ExecutorToken{}, apperr.ErrPairingTokenInvalid
	}

	secret, err := crypto.RandomToken(24)
	if err != nil {
		return "", store.ExecutorToken{}, apperr.ErrInternal
	}
	secretHash := crypto.SHA256Hex(secret)

	_, executorToken, err := c.Store.RedeemExecutorPairing(ctx, parsed.ID, crypto.SHA256Hex(parsed.Secret), secretHash)
	if err != nil {
		return "", store.ExecutorToken{}, apperr.ErrPairingTokenInvalid
	}
	bearer := executorToken.ID.String() + "." + secret
	return bearer, executorToken, nil
}

// Revoke revokes an executor token; idempotent per spec §8 (an
// already-revoked token returns success, not an error).
func (c *Coordinator) Revoke(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	if err := c.Store.RevokeExecutorToken(ctx, tc, id); err != nil {
		return apperr.ErrInternal
	}
	return nil
}

// VerifyToken resolves a bearer token presented by an executor worker
// (`<tokenId>.<secret>`) against its stored hash and confirms it has not
// been revoked.
func (c *Coordinator) VerifyToken(ctx context.Context, bearer string) (store.ExecutorToken, error) {
	id, secret, ok := splitBearer(bearer)
	if !ok {
		return store.ExecutorToken{}, apperr.ErrUnauthorized("malformed executor token")
	}

	token, err := c.Store.GetExecutorToken(ctx, id)
	if err != nil {
		return store.ExecutorToken{}, apperr.ErrUnauthorized("executor token not found")
	}
	if token.RevokedAt != nil {
		return store.ExecutorToken{}, apperr.ErrUnauthorized("executor token has been revoked")
	}
	if !crypto.ConstantTimeEqual(crypto.SHA256Hex(secret), token.TokenHash) {
		return store.ExecutorToken{}, apperr.ErrUnauthorized("executor token does not match")
	}
	return token, nil
}

func splitBearer(bearer string) (uuid.UUID, string, bool) {
	idPart, secret, found := strings.Cut(bearer, ".")
	if !found || secret == "" {
		return uuid.UUID{}, "", false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.UUID{}, "", false
	}
	return id, secret, true
}
