// Package httpapi is the HTTP dispatch layer: it wires every coordinator
// to a chi route tree and translates between HTTP and the typed apperr
// failures the coordinators raise. Grounded on the teacher's
// internal/httpapi package shape (Server struct holding every service,
// Routes(...) building the tree, writeJSON/writeError response helpers),
// generalized from the teacher's sync-service set to this system's
// coordinator set and from the teacher's {error, correlationId} error body
// to spec §7's {code, message, details?} shape.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/authn"
	"github.com/vespid-ai/control-plane/internal/billing"
	"github.com/vespid-ai/control-plane/internal/config"
	"github.com/vespid-ai/control-plane/internal/executor"
	"github.com/vespid-ai/control-plane/internal/oauthcoord"
	"github.com/vespid-ai/control-plane/internal/orgctx"
	"github.com/vespid-ai/control-plane/internal/secretvault"
	"github.com/vespid-ai/control-plane/internal/sessionrouter"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/toolset"
	"github.com/vespid-ai/control-plane/internal/toolsetbuilder"
	"github.com/vespid-ai/control-plane/internal/workflowrun"
)

// Server holds every coordinator the route tree dispatches to, plus the
// raw Store that the org, auth, workflow and session handlers call directly
// for operations that have no coordinator of their own.
type Server struct {
	Store store.Store
	Cfg   config.Config

	Authn          *authn.Authenticator
	OrgCtx         *orgctx.Resolver
	OAuth          *oauthcoord.Coordinator
	Vault          *secretvault.Vault
	WorkflowRun    *workflowrun.Coordinator
	SessionRouter  *sessionrouter.Coordinator
	ToolsetBuilder *toolsetbuilder.Coordinator
	Toolset        *toolset.Coordinator
	Billing        *billing.Coordinator
	Executor       *executor.Coordinator
}

// errorBody is spec §7's response shape for a failed request.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes status with body JSON-encoded, spec §6's plain JSON
// envelope (no outer wrapper beyond the documented per-route shape).
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("httpapi: failed to encode response body")
	}
}

// writeError translates err into spec §7's {code, message, details?} body.
// A *apperr.Error carries its own status/code; any other error is an
// internal failure the caller should never see the internals of.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := err.(*apperr.Error)
	if !ok {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("httpapi: unhandled error")
		appErr = apperr.ErrInternal
	}
	if appErr.Status >= 500 {
		log.Error().Str("code", appErr.Code).Str("path", r.URL.Path).Msg(appErr.Message)
	} else if appErr.Status >= 400 {
		log.Ctx(r.Context()).Warn().Str("code", appErr.Code).Str("path", r.URL.Path).Msg(appErr.Message)
	}
	writeJSON(w, appErr.Status, errorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details})
}

// decodeJSON reads and decodes the request body, surfacing a malformed
// body as spec §7's generic VALIDATION_ERROR.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.ErrValidation("request body is required")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.ErrValidation("malformed request body: " + err.Error())
	}
	return nil
}

// resolveOrg runs orgctx.Resolve for a request whose route carries :orgId,
// applying any accumulated warn-mode codes to the response header before
// returning. Every org-scoped handler in this package starts with this
// call.
func (s *Server) resolveOrg(w http.ResponseWriter, r *http.Request, actorUserID uuid.UUID, requiredRole store.RoleKey) (orgctx.Resolved, store.TenantCtx, error) {
	resolved, err := s.OrgCtx.Resolve(r.Context(), r, actorUserID, requiredRole)
	if err != nil {
		return orgctx.Resolved{}, store.TenantCtx{}, err
	}
	ctx := orgctx.WithWarnings(r.Context(), resolved.Warnings)
	applyOrgWarnings(w, ctx)
	tc := store.TenantCtx{ActorUserID: actorUserID, OrganizationID: resolved.OrganizationID}
	return resolved, tc, nil
}

// clientIP returns the best-effort caller address for AuthSession
// bookkeeping; the teacher's request-logging middleware reads
// r.RemoteAddr the same way for its access log.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
