package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
)

// handleOAuthStart implements `GET /v1/auth/oauth/:provider/start`.
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	redirectURL := s.Cfg.WebBaseURL + "/v1/auth/oauth/" + provider + "/callback"

	result, err := s.OAuth.Start(w, provider, redirectURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, result.AuthorizationURL, http.StatusFound)
}

// handleOAuthCallback implements `GET /v1/auth/oauth/:provider/callback`.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	redirectURL := s.Cfg.WebBaseURL + "/v1/auth/oauth/" + provider + "/callback"

	q := r.URL.Query()
	result, err := s.OAuth.Callback(r.Context(), w, r, q.Get("state"), q.Get("code"), redirectURL, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:    result.Issued.AccessToken,
		UserID:         result.Issued.User.ID.String(),
		Email:          result.Issued.User.EmailLower,
		OrganizationID: result.Organization.ID.String(),
	})
}

type deviceStartRequest struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

// handleOAuthDeviceStart implements the device-flow start step, spec §4.4:
// mints a deviceCode for an org member to complete out-of-band.
func (s *Server) handleOAuthDeviceStart(w http.ResponseWriter, r *http.Request) {
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
	var req deviceStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	code, err := s.OAuth.DeviceStart(tc.OrganizationID, auth.UserID, req.Provider, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"deviceCode": code})
}

type deviceSupplyRequest struct {
	Token string `json:"token"`
}

// handleOAuthDeviceSupply is called by the out-of-band device that
// completed its own OAuth dance to hand the resulting token back.
func (s *Server) handleOAuthDeviceSupply(w http.ResponseWriter, r *http.Request) {
	deviceCode := chi.URLParam(r, "deviceCode")
	var req deviceSupplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.OAuth.DeviceSupply(r.Context(), deviceCode, req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleOAuthDevicePoll implements the poll side of the device flow.
func (s *Server) handleOAuthDevicePoll(w http.ResponseWriter, r *http.Request) {
	deviceCode := chi.URLParam(r, "deviceCode")
	result, err := s.OAuth.DevicePoll(r.Context(), deviceCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body := map[string]any{"status": result.Status}
	if result.SecretID != uuid.Nil {
		body["secretId"] = result.SecretID
	}
	writeJSON(w, http.StatusOK, body)
}

// vertexOAuthGuard rejects the Vertex OAuth routes when the provider isn't
// configured, spec §6's 503 VERTEX_OAUTH_NOT_CONFIGURED.
func (s *Server) vertexOAuthGuard(r *http.Request) error {
	if _, err := s.OAuth.Providers.Get("vertex"); err != nil {
		return apperr.ErrVertexOAuthNotConfigured
	}
	return nil
}

// handleVertexOAuthStart implements the Vertex OAuth variant's start route:
// identical to the generic provider start, gated on the provider actually
// being registered.
func (s *Server) handleVertexOAuthStart(w http.ResponseWriter, r *http.Request) {
	if err := s.vertexOAuthGuard(r); err != nil {
		writeError(w, r, err)
		return
	}
	redirectURL := s.Cfg.WebBaseURL + "/v1/auth/oauth/vertex/callback"
	result, err := s.OAuth.Start(w, "vertex", redirectURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, result.AuthorizationURL, http.StatusFound)
}
