package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateOrganization(ctx context.Context, tc store.TenantCtx, slug, name string) (store.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgsBySlug[slug]; ok {
		return store.Organization{}, store.ErrConflict
	}
	org := store.Organization{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      name,
		Settings:  map[string]any{},
		CreatedAt: s.now(),
	}
	s.orgs[org.ID] = org
	s.orgsBySlug[slug] = org.ID
	s.memberships[org.ID] = map[uuid.UUID]store.Membership{
		tc.ActorUserID: {OrganizationID: org.ID, UserID: tc.ActorUserID, RoleKey: store.RoleOwner},
	}
	return org, nil
}

func (s *Store) GetOrganization(ctx context.Context, id uuid.UUID) (store.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return store.Organization{}, store.ErrNotFound
	}
	return org, nil
}

func (s *Store) GetOrgSettings(ctx context.Context, tc store.TenantCtx) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[tc.OrganizationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return org.Settings, nil
}

func (s *Store) PutOrgSettings(ctx context.Context, tc store.TenantCtx, settings map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[tc.OrganizationID]
	if !ok {
		return store.ErrNotFound
	}
	org.Settings = settings
	s.orgs[tc.OrganizationID] = org
	return nil
}

func (s *Store) GetMembership(ctx context.Context, organizationID, userID uuid.UUID) (store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.memberships[organizationID]
	if !ok {
		return store.Membership{}, store.ErrNotFound
	}
	m, ok := members[userID]
	if !ok {
		return store.Membership{}, store.ErrNotFound
	}
	return m, nil
}

// SetMemberRole enforces spec §3's "one owner per org" invariant: only the
// existing owner may assign the owner role. The caller (orgctx/handlers)
// is expected to have already verified tc.ActorUserID is an owner before
// calling this when role == RoleOwner; this method re-checks defensively.
func (s *Store) SetMemberRole(ctx context.Context, tc store.TenantCtx, memberUserID uuid.UUID, role store.RoleKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.memberships[tc.OrganizationID]
	if !ok {
		return store.ErrNotFound
	}
	target, ok := members[memberUserID]
	if !ok {
		return store.ErrNotFound
	}
	if role == store.RoleOwner {
		actor, ok := members[tc.ActorUserID]
		if !ok || actor.RoleKey != store.RoleOwner {
			return store.ErrPreconditionFailed
		}
	}
	target.RoleKey = role
	members[memberUserID] = target
	return nil
}

func (s *Store) AddMembership(ctx context.Context, tc store.TenantCtx, userID uuid.UUID, role store.RoleKey) (store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.memberships[tc.OrganizationID]
	if !ok {
		members = map[uuid.UUID]store.Membership{}
		s.memberships[tc.OrganizationID] = members
	}
	m := store.Membership{OrganizationID: tc.OrganizationID, UserID: userID, RoleKey: role}
	members[userID] = m
	return m, nil
}
