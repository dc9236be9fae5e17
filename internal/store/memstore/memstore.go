// Package memstore is the in-memory Store implementation used by tests and
// local development, mirroring the teacher's in-memory sessionStore /
// TenantAuthCache pattern (mutex-guarded maps, no external dependency).
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

// Store is a single-process, mutex-guarded implementation of store.Store.
// It enforces the same tenant-isolation contract as the durable backend by
// filtering every read/write on TenantCtx.OrganizationID where the entity is
// org-scoped.
type Store struct {
	mu sync.Mutex

	users            map[uuid.UUID]store.User
	usersByEmail     map[string]uuid.UUID
	orgs             map[uuid.UUID]store.Organization
	orgsBySlug       map[string]uuid.UUID
	memberships      map[uuid.UUID]map[uuid.UUID]store.Membership // orgID -> userID -> membership
	authSessions     map[uuid.UUID]store.AuthSession
	invitations      map[uuid.UUID]store.Invitation
	invitationsByTok map[string]uuid.UUID
	secrets          map[uuid.UUID]store.ConnectorSecret
	workflows        map[uuid.UUID]store.Workflow
	runs             map[uuid.UUID]store.WorkflowRun
	agentSessions    map[uuid.UUID]store.AgentSession
	sessionsByKey    map[string]uuid.UUID
	events           map[uuid.UUID][]store.AgentSessionEvent
	eventsByIdemKey  map[string]uuid.UUID // sessionID|idemKey -> eventID
	bindings         map[uuid.UUID]store.AgentBinding
	builderSessions  map[uuid.UUID]store.ToolsetBuilderSession
	builderTurns     map[uuid.UUID][]store.ToolsetBuilderTurn
	toolsets         map[uuid.UUID]store.Toolset
	credits          map[uuid.UUID]store.OrganizationCredits
	ledger           map[uuid.UUID][]store.LedgerEntry
	ledgerByStripeID map[string]uuid.UUID
	pairings         map[uuid.UUID]store.ExecutorPairing
	executorTokens   map[uuid.UUID]store.ExecutorToken

	now func() time.Time
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		users:            map[uuid.UUID]store.User{},
		usersByEmail:     map[string]uuid.UUID{},
		orgs:             map[uuid.UUID]store.Organization{},
		orgsBySlug:       map[string]uuid.UUID{},
		memberships:      map[uuid.UUID]map[uuid.UUID]store.Membership{},
		authSessions:     map[uuid.UUID]store.AuthSession{},
		invitations:      map[uuid.UUID]store.Invitation{},
		invitationsByTok: map[string]uuid.UUID{},
		secrets:          map[uuid.UUID]store.ConnectorSecret{},
		workflows:        map[uuid.UUID]store.Workflow{},
		runs:             map[uuid.UUID]store.WorkflowRun{},
		agentSessions:    map[uuid.UUID]store.AgentSession{},
		sessionsByKey:    map[string]uuid.UUID{},
		events:           map[uuid.UUID][]store.AgentSessionEvent{},
		eventsByIdemKey:  map[string]uuid.UUID{},
		bindings:         map[uuid.UUID]store.AgentBinding{},
		builderSessions:  map[uuid.UUID]store.ToolsetBuilderSession{},
		builderTurns:     map[uuid.UUID][]store.ToolsetBuilderTurn{},
		toolsets:         map[uuid.UUID]store.Toolset{},
		credits:          map[uuid.UUID]store.OrganizationCredits{},
		ledger:           map[uuid.UUID][]store.LedgerEntry{},
		ledgerByStripeID: map[string]uuid.UUID{},
		pairings:         map[uuid.UUID]store.ExecutorPairing{},
		executorTokens:   map[uuid.UUID]store.ExecutorToken{},
		now:              time.Now,
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, emailLower, passwordHash, displayName string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[emailLower]; ok {
		return store.User{}, store.ErrConflict
	}
	u := store.User{
		ID:           uuid.New(),
		EmailLower:   emailLower,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    s.now(),
	}
	s.users[u.ID] = u
	s.usersByEmail[emailLower] = u.ID
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, emailLower string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usersByEmail[emailLower]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

// EnsurePersonalOrganization finds or creates a single-owner org for userID,
// used on signup and OAuth first-login (spec §4.4 step 5: "ensure a
// personal workspace exists").
func (s *Store) EnsurePersonalOrganization(ctx context.Context, userID uuid.UUID, suggestedName string) (store.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for orgID, members := range s.memberships {
		if m, ok := members[userID]; ok && m.RoleKey == store.RoleOwner && len(members) == 1 {
			return s.orgs[orgID], nil
		}
	}
	org := store.Organization{
		ID:        uuid.New(),
		Slug:      uuid.NewString(),
		Name:      suggestedName,
		Settings:  map[string]any{},
		CreatedAt: s.now(),
	}
	s.orgs[org.ID] = org
	s.orgsBySlug[org.Slug] = org.ID
	s.memberships[org.ID] = map[uuid.UUID]store.Membership{
		userID: {OrganizationID: org.ID, UserID: userID, RoleKey: store.RoleOwner},
	}
	return org, nil
}
