package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateToolset(ctx context.Context, tc store.TenantCtx, t store.Toolset) (store.Toolset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.New()
	t.OrganizationID = tc.OrganizationID
	t.CreatedBy = tc.ActorUserID
	if t.Visibility == "" {
		t.Visibility = store.ToolsetPrivate
	}
	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.toolsets[t.ID] = t
	return t, nil
}

func (s *Store) GetToolset(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.Toolset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.toolsets[id]
	if !ok || t.OrganizationID != tc.OrganizationID {
		return store.Toolset{}, store.ErrNotFound
	}
	return t, nil
}

// PublishToolset assigns a globally-unique public slug when visibility is
// public, mirroring the org/public slug split used for organizations.
func (s *Store) PublishToolset(ctx context.Context, tc store.TenantCtx, id uuid.UUID, visibility store.ToolsetVisibility, slug string) (store.Toolset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.toolsets[id]
	if !ok || t.OrganizationID != tc.OrganizationID {
		return store.Toolset{}, store.ErrNotFound
	}
	if visibility == store.ToolsetPublic {
		for otherID, other := range s.toolsets {
			if otherID != id && other.PublicSlug != nil && *other.PublicSlug == slug {
				return store.Toolset{}, store.ErrConflict
			}
		}
		t.PublicSlug = &slug
	}
	now := s.now()
	t.Visibility = visibility
	t.PublishedAt = &now
	t.UpdatedAt = now
	s.toolsets[id] = t
	return t, nil
}

func (s *Store) UnpublishToolset(ctx context.Context, tc store.TenantCtx, id uuid.UUID, restoreVisibility store.ToolsetVisibility) (store.Toolset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.toolsets[id]
	if !ok || t.OrganizationID != tc.OrganizationID {
		return store.Toolset{}, store.ErrNotFound
	}
	t.Visibility = restoreVisibility
	t.PublicSlug = nil
	t.PublishedAt = nil
	t.UpdatedAt = s.now()
	s.toolsets[id] = t
	return t, nil
}
