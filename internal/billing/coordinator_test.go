package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/store/memstore"
)

func checkoutCompletedBody(eventID, orgID string, credits int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"payment_status": "paid", "metadata": {"organizationId": %q, "credits": "%d"}}}
	}`, eventID, orgID, credits))
}

func TestHandleWebhookAppliesCreditsOnce(t *testing.T) {
	st := memstore.New()
	c := New(st, nil, testSecret, "")
	tc := store.TenantCtx{ActorUserID: uuid.New(), OrganizationID: uuid.New()}
	ctx := context.Background()

	body := checkoutCompletedBody("evt_1", tc.OrganizationID.String(), 500)
	header := signedHeader(t, body, time.Now())

	applied, err := c.HandleWebhook(ctx, body, header)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if !applied {
		t.Fatal("expected first delivery to be applied")
	}

	credits, err := c.GetCredits(ctx, tc)
	if err != nil {
		t.Fatalf("GetCredits: %v", err)
	}
	if credits.BalanceCredits != 500 {
		t.Fatalf("BalanceCredits = %d, want 500", credits.BalanceCredits)
	}

	appliedAgain, err := c.HandleWebhook(ctx, body, header)
	if err != nil {
		t.Fatalf("HandleWebhook (replay): %v", err)
	}
	if appliedAgain {
		t.Fatal("expected replayed event id to be a no-op")
	}

	credits, err = c.GetCredits(ctx, tc)
	if err != nil {
		t.Fatalf("GetCredits after replay: %v", err)
	}
	if credits.BalanceCredits != 500 {
		t.Fatalf("BalanceCredits after replay = %d, want 500 (unchanged)", credits.BalanceCredits)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	st := memstore.New()
	c := New(st, nil, testSecret, "")
	body := checkoutCompletedBody("evt_2", uuid.New().String(), 100)

	if _, err := c.HandleWebhook(context.Background(), body, "t=1,v1=deadbeef"); err == nil {
		t.Fatal("expected bad signature to be rejected")
	}
}

func TestHandleWebhookIgnoresUnpaidEvent(t *testing.T) {
	st := memstore.New()
	c := New(st, nil, testSecret, "")
	body := []byte(`{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"data": {"object": {"payment_status": "unpaid", "metadata": {}}}
	}`)
	header := signedHeader(t, body, time.Now())

	applied, err := c.HandleWebhook(context.Background(), body, header)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if applied {
		t.Fatal("expected unpaid event to be a no-op")
	}
}

func TestListPacksAndFindPack(t *testing.T) {
	packs := ParsePacks(`[{"id":"small","priceId":"price_1","credits":100,"label":"Small"}]`)
	if len(packs) != 1 {
		t.Fatalf("len(packs) = %d, want 1", len(packs))
	}
	c := New(memstore.New(), packs, testSecret, "")
	if got := c.ListPacks(); len(got) != 1 || got[0].ID != "small" {
		t.Fatalf("ListPacks = %+v", got)
	}
	if _, ok := FindPack(packs, "missing"); ok {
		t.Fatal("expected FindPack to report false for an unknown id")
	}
}
