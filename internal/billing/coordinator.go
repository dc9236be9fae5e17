// Package billing implements spec §4.9's payments/credits coordinator:
// webhook signature verification, at-most-once credit application keyed by
// the processor's event id, and the credit-pack/checkout surface §6 lists
// alongside it.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
)

// Coordinator implements spec §4.9.
type Coordinator struct {
	Store         store.Store
	Packs         []CreditPack
	WebhookSecret string
	StripeKey     string
	Prices        *PriceCache
	HTTPClient    *http.Client
}

func New(st store.Store, packs []CreditPack, webhookSecret, stripeKey string) *Coordinator {
	c := &Coordinator{
		Store:         st,
		Packs:         packs,
		WebhookSecret: webhookSecret,
		StripeKey:     stripeKey,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
	}
	c.Prices = NewPriceCache(c.fetchPrice)
	return c
}

// ListPacks implements `GET /v1/billing/credits/packs`.
func (c *Coordinator) ListPacks() []CreditPack {
	return c.Packs
}

// GetCredits implements `GET /v1/orgs/:orgId/billing/credits`.
func (c *Coordinator) GetCredits(ctx context.Context, tc store.TenantCtx) (store.OrganizationCredits, error) {
	credits, err := c.Store.GetCredits(ctx, tc)
	if err != nil {
		return store.OrganizationCredits{}, apperr.ErrInternal
	}
	return credits, nil
}

// ListLedger implements `GET /v1/orgs/:orgId/billing/credits/ledger`.
func (c *Coordinator) ListLedger(ctx context.Context, tc store.TenantCtx, cursor store.Cursor, limit int) ([]store.LedgerEntry, store.Cursor, bool, error) {
	entries, next, hasMore, err := c.Store.ListLedger(ctx, tc, cursor, limit)
	if err != nil {
		return nil, store.Cursor{}, false, apperr.ErrInternal
	}
	return entries, next, hasMore, nil
}

// CreateCheckoutSession implements `POST …/credits/checkout`: resolve the
// requested pack's price (via the deduplicated price cache), then create a
// Stripe Checkout Session carrying {organizationId, credits} in its
// metadata so the webhook handler can credit the right org later.
func (c *Coordinator) CreateCheckoutSession(ctx context.Context, tc store.TenantCtx, packID, successURL, cancelURL string) (string, error) {
	if c.StripeKey == "" || c.WebhookSecret == "" {
		return "", apperr.ErrStripeNotConfigured
	}
	pack, ok := FindPack(c.Packs, packID)
	if !ok {
		return "", apperr.ErrNotFound("credit pack not found")
	}
	if _, err := c.Prices.Get(pack.PriceID); err != nil {
		return "", apperr.ErrStripeNotConfigured
	}

	form := map[string]string{
		"mode":                     "payment",
		"success_url":              successURL,
		"cancel_url":               cancelURL,
		"line_items[0][price]":     pack.PriceID,
		"line_items[0][quantity]":  "1",
		"metadata[organizationId]": tc.OrganizationID.String(),
		"metadata[credits]":        fmt.Sprintf("%d", pack.Credits),
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.stripePost(ctx, "/v1/checkout/sessions", form, &resp); err != nil {
		return "", apperr.ErrStripeNotConfigured
	}
	return resp.URL, nil
}

// checkoutSessionCompletedEvent is the subset of a Stripe event this
// coordinator inspects; spec §4.9 only acts on checkout.session.completed.
type checkoutSessionCompletedEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			PaymentStatus string            `json:"payment_status"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandleWebhook implements `POST /v1/billing/stripe/webhook`: verify
// signature, and for a paid checkout.session.completed event with valid
// metadata, apply credits at-most-once keyed by the event id. Every other
// outcome, including a malformed or non-matching event, is a 200 no-op per
// spec §4.9 step 4 — only signature failure is a 400.
func (c *Coordinator) HandleWebhook(ctx context.Context, body []byte, signatureHeader string) (applied bool, err error) {
	if c.WebhookSecret == "" {
		return false, apperr.ErrStripeNotConfigured
	}
	if err := VerifyWebhookSignature(body, signatureHeader, c.WebhookSecret); err != nil {
		return false, apperr.ErrValidation("invalid webhook signature")
	}

	var event checkoutSessionCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return false, nil
	}
	if event.Type != "checkout.session.completed" {
		return false, nil
	}
	if event.Data.Object.PaymentStatus != "paid" {
		return false, nil
	}

	orgIDRaw, ok := event.Data.Object.Metadata["organizationId"]
	if !ok {
		return false, nil
	}
	orgID, err := uuid.Parse(orgIDRaw)
	if err != nil {
		return false, nil
	}
	creditsRaw, ok := event.Data.Object.Metadata["credits"]
	if !ok {
		return false, nil
	}
	var credits int64
	if _, err := fmt.Sscanf(creditsRaw, "%d", &credits); err != nil || credits <= 0 {
		return false, nil
	}

	eventID := event.ID
	applied, _, err = c.Store.ApplyCredit(ctx, orgID, credits, "stripe_checkout", &eventID, nil, nil, map[string]any{
		"stripeEventType": event.Type,
	})
	if err != nil {
		return false, apperr.ErrInternal
	}
	return applied, nil
}

// fetchPrice is the PriceCache's miss-path fetcher: a plain REST call
// against Stripe's Prices API, since Stripe's official Go SDK is not part
// of this codebase's dependency stack.
func (c *Coordinator) fetchPrice(priceID string) (StripePrice, error) {
	var resp struct {
		ID         string `json:"id"`
		UnitAmount int64  `json:"unit_amount"`
		Currency   string `json:"currency"`
	}
	if err := c.stripeGet(priceID, &resp); err != nil {
		return StripePrice{}, err
	}
	return StripePrice{ID: resp.ID, UnitAmount: resp.UnitAmount, Currency: resp.Currency}, nil
}
