// Package orgctx implements the OrgContextResolver (spec §4.3): resolving
// and validating the organization a request operates against from the
// X-Org-Id header and the route's :orgId, then loading and role-gating the
// caller's membership. Modeled on the teacher's tenant-header middleware in
// internal/auth/tenant_headers.go, with the WorkOS membership lookup
// replaced by the in-repo Store and the HMAC-signed header replaced by the
// spec's plain X-Org-Id + membership-table check.
package orgctx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/config"
	"github.com/vespid-ai/control-plane/internal/store"
)

// Mode is the enforcement mode spec §4.3 names.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeWarn   Mode = "warn"
)

// Resolved is the outcome of a successful resolution: the organization id in
// effect plus any warning codes accumulated in warn mode.
type Resolved struct {
	OrganizationID uuid.UUID
	Membership     store.Membership
	Warnings       []string
}

// Resolver is the §4.3 coordinator.
type Resolver struct {
	Store store.Store
	Mode  Mode
}

func New(st store.Store, cfg config.Config) *Resolver {
	mode := ModeStrict
	if cfg.OrgContextEnforcement == string(ModeWarn) {
		mode = ModeWarn
	}
	return &Resolver{Store: st, Mode: mode}
}

// Resolve runs the §4.3 algorithm for a request whose route carries an
// :orgId param. requiredRole is the minimum role the route needs, or ""
// if the route has no role gate.
func (o *Resolver) Resolve(ctx context.Context, r *http.Request, actorUserID uuid.UUID, requiredRole store.RoleKey) (Resolved, error) {
	routeOrgID, err := uuid.Parse(chi.URLParam(r, "orgId"))
	if err != nil {
		return Resolved{}, apperr.ErrInvalidOrgContext
	}

	var warnings []string
	orgID := routeOrgID

	headerRaw := r.Header.Get("X-Org-Id")
	if headerRaw == "" {
		if o.Mode == ModeStrict {
			return Resolved{}, apperr.ErrOrgContextRequired
		}
		warnings = append(warnings, "org_context_header_missing")
	} else {
		headerOrgID, err := uuid.Parse(headerRaw)
		if err != nil {
			if o.Mode == ModeStrict {
				return Resolved{}, apperr.ErrInvalidOrgContext
			}
			warnings = append(warnings, "org_context_header_invalid")
		} else if headerOrgID != routeOrgID {
			if o.Mode == ModeStrict {
				return Resolved{}, apperr.ErrInvalidOrgContext
			}
			warnings = append(warnings, "org_context_header_mismatch")
			orgID = routeOrgID
		}
	}

	membership, err := o.Store.GetMembership(ctx, orgID, actorUserID)
	if err != nil {
		return Resolved{}, apperr.ErrOrgAccessDenied
	}

	if requiredRole != "" && store.RoleRank(membership.RoleKey) < store.RoleRank(requiredRole) {
		return Resolved{}, apperr.ErrForbidden("caller's role does not satisfy this route's requirement")
	}

	for _, w := range warnings {
		log.Debug().Str("org_id", orgID.String()).Str("warning", w).Msg("org context warning")
	}
	return Resolved{OrganizationID: orgID, Membership: membership, Warnings: warnings}, nil
}

// CanGrantRole implements the "only an existing owner may grant owner"
// invariant: an actor may grant any role at or below their own rank, except
// that granting RoleOwner requires the actor already be an owner.
func CanGrantRole(actorRole, targetRole store.RoleKey) bool {
	if targetRole == store.RoleOwner {
		return actorRole == store.RoleOwner
	}
	return store.RoleRank(actorRole) >= store.RoleRank(targetRole)
}

type warningsCtxKey struct{}

// WithWarnings stashes accumulated warn-mode codes on ctx for the
// post-handler (§4.1) to flatten into the x-org-context-warning header.
func WithWarnings(ctx context.Context, warnings []string) context.Context {
	if len(warnings) == 0 {
		return ctx
	}
	existing, _ := ctx.Value(warningsCtxKey{}).([]string)
	return context.WithValue(ctx, warningsCtxKey{}, append(existing, warnings...))
}

// Warnings returns the de-duplicated warning codes accumulated on ctx.
func Warnings(ctx context.Context) []string {
	raw, _ := ctx.Value(warningsCtxKey{}).([]string)
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
