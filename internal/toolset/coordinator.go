// Package toolset implements the supplemented publish/unpublish round-trip
// for the Toolset entity (spec §8: "Toolset `publish` followed by
// `unpublish` restores visibility to org/private as requested and clears
// `publicSlug, publishedAt`"). It is catalog-independent from
// internal/toolsetbuilder: the builder's finalize produces a
// store.ToolsetDraft, and this package is where that draft gets a
// first-class, publishable home.
package toolset

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/crypto"
	"github.com/vespid-ai/control-plane/internal/store"
)

// Coordinator implements the toolset create/publish/unpublish operations.
type Coordinator struct {
	Store store.Store
}

func New(st store.Store) *Coordinator {
	return &Coordinator{Store: st}
}

// Create persists a toolset in its default private visibility.
func (c *Coordinator) Create(ctx context.Context, tc store.TenantCtx, createdBy uuid.UUID, name string, draft store.ToolsetDraft) (store.Toolset, error) {
	if strings.TrimSpace(name) == "" {
		return store.Toolset{}, apperr.ErrValidation("name is required")
	}
	toolset, err := c.Store.CreateToolset(ctx, tc, store.Toolset{
		ID:             uuid.New(),
		OrganizationID: tc.OrganizationID,
		Name:           name,
		Draft:          draft,
		Visibility:     store.ToolsetPrivate,
		CreatedBy:      createdBy,
	})
	if err != nil {
		return store.Toolset{}, apperr.ErrInternal
	}
	return toolset, nil
}

func (c *Coordinator) Get(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.Toolset, error) {
	toolset, err := c.Store.GetToolset(ctx, tc, id)
	if err != nil {
		return store.Toolset{}, apperr.ErrToolsetNotFound
	}
	return toolset, nil
}

// Publish sets visibility to org or public. Every publish to public
// generates a fresh publicSlug, so re-publishing after a prior unpublish
// never reuses a revoked slug.
func (c *Coordinator) Publish(ctx context.Context, tc store.TenantCtx, id uuid.UUID, visibility store.ToolsetVisibility) (store.Toolset, error) {
	if visibility != store.ToolsetOrg && visibility != store.ToolsetPublic {
		return store.Toolset{}, apperr.ErrValidation("publish visibility must be \"org\" or \"public\"")
	}

	toolset, err := c.Store.GetToolset(ctx, tc, id)
	if err != nil {
		return store.Toolset{}, apperr.ErrToolsetNotFound
	}

	// A random-suffixed slug colliding with an existing public toolset is
	// vanishingly unlikely but not impossible; retry a handful of times
	// with a fresh suffix rather than surfacing a spurious conflict.
	const maxSlugAttempts = 3
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug := ""
		if visibility == store.ToolsetPublic {
			slug, err = newSlug(toolset.Name)
			if err != nil {
				return store.Toolset{}, apperr.ErrInternal
			}
		}

		published, err := c.Store.PublishToolset(ctx, tc, id, visibility, slug)
		if err == nil {
			return published, nil
		}
		if errors.Is(err, store.ErrConflict) && visibility == store.ToolsetPublic {
			continue
		}
		return store.Toolset{}, apperr.ErrInternal
	}
	return store.Toolset{}, apperr.ErrPublicSlugConflict
}

// Unpublish restores visibility to the caller-requested value (org or
// private) and clears publicSlug/publishedAt, spec §8's round-trip
// property.
func (c *Coordinator) Unpublish(ctx context.Context, tc store.TenantCtx, id uuid.UUID, restoreVisibility store.ToolsetVisibility) (store.Toolset, error) {
	if restoreVisibility != store.ToolsetOrg && restoreVisibility != store.ToolsetPrivate {
		return store.Toolset{}, apperr.ErrValidation("unpublish visibility must be \"org\" or \"private\"")
	}

	if _, err := c.Store.GetToolset(ctx, tc, id); err != nil {
		return store.Toolset{}, apperr.ErrToolsetNotFound
	}

	unpublished, err := c.Store.UnpublishToolset(ctx, tc, id, restoreVisibility)
	if err != nil {
		return store.Toolset{}, apperr.ErrInternal
	}
	return unpublished, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// newSlug derives a URL-safe public slug from the toolset name plus a short
// random suffix, so concurrent publishes of same-named toolsets rarely
// collide (Publish retries on a collision).
func newSlug(name string) (string, error) {
	base := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if base == "" {
		base = "toolset"
	}
	suffix, err := crypto.RandomToken(4)
	if err != nil {
		return "", err
	}
	clean := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(suffix), ""), "-")
	return base + "-" + clean, nil
}
