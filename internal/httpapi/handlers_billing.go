package httpapi

import (
	"io"
	"net/http"

	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
)

// handleListCreditPacks implements `GET /v1/billing/credits/packs`: a
// static, unauthenticated catalog, same footing as /v1/meta/connectors.
func (s *Server) handleListCreditPacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"packs": s.Billing.ListPacks()})
}

// handleGetCredits implements `GET /v1/orgs/:orgId/billing/credits`.
func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	credits, err := s.Billing.GetCredits(r.Context(), tc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}

// handleListLedger implements `GET /v1/orgs/:orgId/billing/credits/ledger`.
func (s *Server) handleListLedger(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cursor, err := decodeCursor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := decodeLimit(r)
	entries, next, hasMore, err := s.Billing.ListLedger(r.Context(), tc, cursor, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(entries, next, hasMore))
}

type createCheckoutSessionRequest struct {
	PackID     string `json:"packId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// handleCreateCheckoutSession implements
// `POST /v1/orgs/:orgId/billing/credits/checkout`.
func (s *Server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleAdmin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createCheckoutSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PackID == "" || req.SuccessURL == "" || req.CancelURL == "" {
		writeError(w, r, apperr.ErrValidation("packId, successUrl, and cancelUrl are required"))
		return
	}
	checkoutURL, err := s.Billing.CreateCheckoutSession(r.Context(), tc, req.PackID, req.SuccessURL, req.CancelURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"checkoutUrl": checkoutURL})
}

// handleStripeWebhook implements `POST /v1/billing/stripe/webhook`. Stripe
// signs the raw request body, so this route reads it directly instead of
// going through decodeJSON, and it sits outside AuthMiddleware entirely —
// the signature itself is the authentication.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, apperr.ErrValidation("could not read request body"))
		return
	}
	applied, err := s.Billing.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}
