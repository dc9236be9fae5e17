package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/orgctx"
	"github.com/vespid-ai/control-plane/internal/store"
)

type createOrgRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// handleCreateOrg implements `POST /v1/orgs`: the creating user becomes its
// first owner.
func (s *Server) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createOrgRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Slug) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, r, apperr.ErrValidation("slug and name are required"))
		return
	}

	tc := store.TenantCtx{ActorUserID: auth.UserID}
	org, err := s.Store.CreateOrganization(r.Context(), tc, req.Slug, req.Name)
	if err != nil {
		writeError(w, r, apperr.ErrConflict("an organization with this slug already exists"))
		return
	}
	if _, err := s.Store.AddMembership(r.Context(), store.TenantCtx{ActorUserID: auth.UserID, OrganizationID: org.ID}, auth.UserID, store.RoleOwner); err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

type createInvitationRequest struct {
	Email string        `json:"email"`
	Role  store.RoleKey `json:"role"`
}

// handleCreateInvitation implements `POST /v1/orgs/:orgId/invitations`.
// Only an admin or owner may invite, and only an owner may invite another
// owner (orgctx.CanGrantRole).
func (s *Server) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resolved, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleAdmin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	emailLower := strings.ToLower(strings.TrimSpace(req.Email))
	if emailLower == "" || req.Role == "" {
		writeError(w, r, apperr.ErrValidation("email and role are required"))
		return
	}
	if !orgctx.CanGrantRole(resolved.Membership.RoleKey, req.Role) {
		writeError(w, r, apperr.ErrForbidden("only an owner may invite another owner"))
		return
	}

	inv, err := s.Store.CreateInvitation(r.Context(), tc, emailLower, req.Role)
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

type setMemberRoleRequest struct {
	Role store.RoleKey `json:"role"`
}

// handleSetMemberRole implements `POST /v1/orgs/:orgId/members/:memberId/role`.
func (s *Server) handleSetMemberRole(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resolved, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleAdmin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	memberID, err := uuid.Parse(chi.URLParam(r, "memberId"))
	if err != nil {
		writeError(w, r, apperr.ErrValidation("malformed memberId"))
		return
	}
	var req setMemberRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Role == "" {
		writeError(w, r, apperr.ErrValidation("role is required"))
		return
	}
	if !orgctx.CanGrantRole(resolved.Membership.RoleKey, req.Role) {
		writeError(w, r, apperr.ErrForbidden("only an owner may grant the owner role"))
		return
	}

	if err := s.Store.SetMemberRole(r.Context(), tc, memberID, req.Role); err != nil {
		writeError(w, r, apperr.ErrNotFound("member not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleGetOrgSettings implements `GET /v1/orgs/:orgId/settings`.
func (s *Server) handleGetOrgSettings(w http.ResponseWriter, r *http.Request) {
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
	settings, err := s.Store.GetOrgSettings(r.Context(), tc)
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handlePutOrgSettings implements `PUT /v1/orgs/:orgId/settings`.
func (s *Server) handlePutOrgSettings(w http.ResponseWriter, r *http.Request) {
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
	var settings map[string]any
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Store.PutOrgSettings(r.Context(), tc, settings); err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
