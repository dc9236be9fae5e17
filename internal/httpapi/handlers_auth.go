package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/tokencodec"
)

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken    string `json:"accessToken"`
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// handleSignup implements `POST /v1/auth/signup`.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	emailLower := strings.ToLower(strings.TrimSpace(req.Email))
	if emailLower == "" || req.Password == "" {
		writeError(w, r, apperr.ErrValidation("email and password are required"))
		return
	}

	issued, org, err := s.Authn.Signup(r.Context(), w, emailLower, req.Password, req.DisplayName, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{
		AccessToken:    issued.AccessToken,
		UserID:         issued.User.ID.String(),
		Email:          issued.User.EmailLower,
		OrganizationID: org.ID.String(),
	})
}

// handleLogin implements `POST /v1/auth/login`.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	emailLower := strings.ToLower(strings.TrimSpace(req.Email))

	issued, err := s.Authn.Login(r.Context(), w, emailLower, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: issued.AccessToken,
		UserID:      issued.User.ID.String(),
		Email:       issued.User.EmailLower,
	})
}

// handleRefresh implements `POST /v1/auth/refresh`: the explicit rotation
// path, always rotating the refresh cookie (unlike the passive refresh
// AuthMiddleware performs inline on arbitrary requests).
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	issued, err := s.Authn.Rotate(r.Context(), w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: issued.AccessToken,
		UserID:      issued.User.ID.String(),
		Email:       issued.User.EmailLower,
	})
}

// handleLogout implements `POST /v1/auth/logout`.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Authn.Logout(r.Context(), w, auth.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleLogoutAll implements `POST /v1/auth/logout-all`.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Authn.LogoutAll(r.Context(), w, auth.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleMe implements `GET /v1/me`.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.Store.GetUserByID(r.Context(), auth.UserID)
	if err != nil {
		writeError(w, r, apperr.ErrNotFound("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          user.ID,
		"email":       user.EmailLower,
		"displayName": user.DisplayName,
	})
}

// handleAcceptInvitation implements `POST /v1/invitations/:token/accept`.
// The token's leading organizationId segment is checked against the
// looked-up row's own organizationId (tokencodec.ParseInviteToken's
// documented invariant) before the store is allowed to apply it.
func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token := chi.URLParam(r, "token")

	inv, err := s.Store.GetInvitationByToken(r.Context(), token)
	if err != nil {
		writeError(w, r, apperr.ErrNotFound("invitation not found"))
		return
	}
	parsed, err := tokencodec.ParseInviteToken(token)
	if err != nil || parsed.OrganizationID != inv.OrganizationID {
		writeError(w, r, apperr.ErrValidation("invitation token does not match its organization"))
		return
	}

	membership, err := s.Store.AcceptInvitation(r.Context(), token, auth.UserID)
	if err != nil {
		writeError(w, r, apperr.ErrConflict("invitation is not acceptable"))
		return
	}
	writeJSON(w, http.StatusOK, membership)
}
