package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/tokencodec"
)

func (s *Store) CreateInvitation(ctx context.Context, tc store.TenantCtx, emailLower string, role store.RoleKey) (store.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := store.Invitation{
		ID:              uuid.New(),
		OrganizationID:  tc.OrganizationID,
		EmailLower:      emailLower,
		RoleKey:         role,
		InvitedByUserID: tc.ActorUserID,
		Status:          store.InvitationPending,
		ExpiresAt:       s.now().Add(7 * 24 * time.Hour),
	}
	token, err := tokencodec.NewInviteToken(tc.OrganizationID)
	if err != nil {
		return store.Invitation{}, err
	}
	inv.Token = token
	s.invitations[inv.ID] = inv
	s.invitationsByTok[token] = inv.ID
	return inv, nil
}

func (s *Store) GetInvitationByToken(ctx context.Context, token string) (store.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.invitationsByTok[token]
	if !ok {
		return store.Invitation{}, store.ErrNotFound
	}
	return s.invitations[id], nil
}

// AcceptInvitation is idempotent once status has transitioned to accepted
// (spec §8): replaying returns the same membership without error.
func (s *Store) AcceptInvitation(ctx context.Context, token string, acceptingUserID uuid.UUID) (store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.invitationsByTok[token]
	if !ok {
		return store.Membership{}, store.ErrNotFound
	}
	inv := s.invitations[id]

	if inv.Status == store.InvitationAccepted {
		members := s.memberships[inv.OrganizationID]
		return members[acceptingUserID], nil
	}
	if inv.Status != store.InvitationPending {
		return store.Membership{}, store.ErrConflict
	}
	if s.now().After(inv.ExpiresAt) {
		inv.Status = store.InvitationExpired
		s.invitations[id] = inv
		return store.Membership{}, store.ErrConflict
	}

	inv.Status = store.InvitationAccepted
	s.invitations[id] = inv

	members, ok := s.memberships[inv.OrganizationID]
	if !ok {
		members = map[uuid.UUID]store.Membership{}
		s.memberships[inv.OrganizationID] = members
	}
	m := store.Membership{OrganizationID: inv.OrganizationID, UserID: acceptingUserID, RoleKey: inv.RoleKey}
	members[acceptingUserID] = m
	return m, nil
}
