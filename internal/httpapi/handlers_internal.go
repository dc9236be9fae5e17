package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
)

type issueExecutorPairingRequest struct {
	Name string `json:"name"`
}

// handleIssueExecutorPairing implements
// `POST /v1/orgs/:orgId/executors/pairings`.
func (s *Server) handleIssueExecutorPairing(w http.ResponseWriter, r *http.Request) {
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
	var req issueExecutorPairingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, apperr.ErrValidation("name is required"))
		return
	}
	token, pairing, err := s.Executor.Issue(r.Context(), tc, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"pairingToken": token,
		"pairing":      pairing,
	})
}

// handleRevokeExecutorToken implements
// `POST /v1/orgs/:orgId/executors/:executorTokenId/revoke`.
func (s *Server) handleRevokeExecutorToken(w http.ResponseWriter, r *http.Request) {
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
	id, err := uuid.Parse(chi.URLParam(r, "executorTokenId"))
	if err != nil {
		writeError(w, r, apperr.ErrValidation("malformed executorTokenId"))
		return
	}
	if err := s.Executor.Revoke(r.Context(), tc, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type redeemExecutorPairingRequest struct {
	PairingToken string `json:"pairingToken"`
}

// handleRedeemExecutorPairing implements `POST /v1/executors/redeem`: no
// auth, since the caller is an unenrolled worker presenting the one-shot
// pairing token as its only credential.
func (s *Server) handleRedeemExecutorPairing(w http.ResponseWriter, r *http.Request) {
	var req redeemExecutorPairingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bearer, token, err := s.Executor.Redeem(r.Context(), req.PairingToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"executorToken": bearer,
		"token":         token,
	})
}

type channelTriggerRunRequest struct {
	OrganizationID    uuid.UUID      `json:"organizationId"`
	WorkflowID        uuid.UUID      `json:"workflowId"`
	RequestedByUserID uuid.UUID      `json:"requestedByUserId"`
	Input             map[string]any `json:"input"`
}

// handleChannelTriggerRun implements `POST /internal/v1/channels/trigger-run`:
// a channel connector (Slack, Discord, …) asks the control plane to run a
// published workflow on its behalf, authenticated by the shared gateway
// service token rather than a user session.
func (s *Server) handleChannelTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req channelTriggerRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OrganizationID == uuid.Nil || req.WorkflowID == uuid.Nil {
		writeError(w, r, apperr.ErrValidation("organizationId and workflowId are required"))
		return
	}
	tc := store.TenantCtx{ActorUserID: req.RequestedByUserID, OrganizationID: req.OrganizationID}
	run, err := s.WorkflowRun.CreateFromChannel(r.Context(), tc, req.WorkflowID, req.RequestedByUserID, req.Input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}
