package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
)

type createSecretRequest struct {
	ConnectorID string `json:"connectorId"`
	Name        string `json:"name"`
	Value       string `json:"value"`
}

// secretSummary omits everything the vault guards: no ciphertext, no
// plaintext, just enough for a caller to pick a secret to rotate/delete.
type secretSummary struct {
	ID          uuid.UUID `json:"id"`
	ConnectorID string    `json:"connectorId"`
	Name        string    `json:"name"`
}

func toSecretSummary(s store.ConnectorSecret) secretSummary {
	return secretSummary{ID: s.ID, ConnectorID: s.ConnectorID, Name: s.Name}
}

// handleCreateSecret implements `POST /v1/orgs/:orgId/secrets`.
func (s *Server) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
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
	var req createSecretRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ConnectorID) == "" || strings.TrimSpace(req.Name) == "" || req.Value == "" {
		writeError(w, r, apperr.ErrValidation("connectorId, name, and value are required"))
		return
	}

	created, err := s.Vault.Create(r.Context(), tc, req.ConnectorID, req.Name, req.Value, auth.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSecretSummary(created))
}

// handleListSecrets implements `GET /v1/orgs/:orgId/secrets`.
func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
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
	rows, err := s.Vault.List(r.Context(), tc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries := make([]secretSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, toSecretSummary(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"secrets": summaries})
}

func parseSecretID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "secretId"))
	if err != nil {
		return uuid.Nil, apperr.ErrValidation("malformed secretId")
	}
	return id, nil
}

// handleRevealSecret implements `POST /v1/orgs/:orgId/secrets/:secretId/reveal`.
// A dedicated POST (not GET) so the reveal is never cached or logged as a
// URL by an intermediate proxy.
func (s *Server) handleRevealSecret(w http.ResponseWriter, r *http.Request) {
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
	id, err := parseSecretID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plaintext, err := s.Vault.Reveal(r.Context(), tc, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": plaintext})
}

type rotateSecretRequest struct {
	Value string `json:"value"`
}

// handleRotateSecret implements `POST /v1/orgs/:orgId/secrets/:secretId/rotate`.
func (s *Server) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
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
	id, err := parseSecretID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rotateSecretRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Value == "" {
		writeError(w, r, apperr.ErrValidation("value is required"))
		return
	}
	updated, err := s.Vault.Rotate(r.Context(), tc, id, req.Value, auth.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSecretSummary(updated))
}

// handleDeleteSecret implements `DELETE /v1/orgs/:orgId/secrets/:secretId`.
func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
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
	id, err := parseSecretID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Vault.Delete(r.Context(), tc, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
