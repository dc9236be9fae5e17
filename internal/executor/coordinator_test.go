package executor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/store/memstore"
)

func newTestCoordinator() (*Coordinator, store.TenantCtx) {
	st := memstore.New()
	tc := store.TenantCtx{ActorUserID: uuid.New(), OrganizationID: uuid.New()}
	return New(st), tc
}

func TestIssueRedeemRoundTrip(t *testing.T) {
	c, tc := newTestCoordinator()
	ctx := context.Background()

	pairingToken, pairing, err := c.Issue(ctx, tc, "worker-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pairingToken == "" {
		t.Fatal("expected non-empty pairing token")
	}
	if pairing.Name != "worker-1" {
		t.Fatalf("pairing.Name = %q, want worker-1", pairing.Name)
	}

	bearer, execToken, err := c.Redeem(ctx, pairingToken)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if bearer == "" {
		t.Fatal("expected non-empty bearer token")
	}
	if execToken.Name != "worker-1" {
		t.Fatalf("execToken.Name = %q, want worker-1", execToken.Name)
	}
	if execToken.RevokedAt != nil {
		t.Fatal("freshly redeemed token must not be revoked")
	}

	verified, err := c.VerifyToken(ctx, bearer)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if verified.ID != execToken.ID {
		t.Fatalf("verified.ID = %v, want %v", verified.ID, execToken.ID)
	}
}

func TestRedeemTwiceFails(t *testing.T) {
	c, tc := newTestCoordinator()
	ctx := context.Background()

	pairingToken, _, err := c.Issue(ctx, tc, "worker-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := c.Redeem(ctx, pairingToken); err != nil {
		t.Fatalf("first Redeem: %v", err)
	}
	if _, _, err := c.Redeem(ctx, pairingToken); err == nil {
		t.Fatal("expected second Redeem of the same pairing token to fail")
	}
}

func TestRedeemMalformedToken(t *testing.T) {
	c, _ := newTestCoordinator()
	if _, _, err := c.Redeem(context.Background(), "not-a-valid-token"); err == nil {
		t.Fatal("expected malformed token to fail")
	} else if appErr, ok := err.(*apperr.Error); !ok || appErr.Code != "PAIRING_TOKEN_INVALID" {
		t.Fatalf("expected PAIRING_TOKEN_INVALID, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	c, tc := newTestCoordinator()
	ctx := context.Background()

	pairingToken, _, err := c.Issue(ctx, tc, "worker-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, execToken, err := c.Redeem(ctx, pairingToken)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	if err := c.Revoke(ctx, tc, execToken.ID); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}
	if err := c.Revoke(ctx, tc, execToken.ID); err != nil {
		t.Fatalf("second Revoke (should be a no-op): %v", err)
	}
}

func TestVerifyTokenRejectsRevoked(t *testing.T) {
	c, tc := newTestCoordinator()
	ctx := context.Background()

	pairingToken, _, err := c.Issue(ctx, tc, "worker-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	bearer, execToken, err := c.Redeem(ctx, pairingToken)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	if err := c.Revoke(ctx, tc, execToken.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := c.VerifyToken(ctx, bearer); err == nil {
		t.Fatal("expected VerifyToken to reject a revoked token")
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	c, tc := newTestCoordinator()
	ctx := context.Background()

	pairingToken, _, err := c.Issue(ctx, tc, "worker-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, execToken, err := c.Redeem(ctx, pairingToken)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	if _, err := c.VerifyToken(ctx, execToken.ID.String()+".wrong-secret"); err == nil {
		t.Fatal("expected VerifyToken to reject a mismatched secret")
	}
}
