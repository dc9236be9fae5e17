package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateAuthSession(ctx context.Context, as store.AuthSession) (store.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if as.ID == uuid.Nil {
		as.ID = uuid.New()
	}
	as.LastUsedAt = s.now()
	s.authSessions[as.ID] = as
	return as, nil
}

func (s *Store) GetAuthSession(ctx context.Context, id uuid.UUID) (store.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.authSessions[id]
	if !ok {
		return store.AuthSession{}, store.ErrNotFound
	}
	return as, nil
}

func (s *Store) TouchAuthSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.authSessions[id]
	if !ok {
		return store.ErrNotFound
	}
	as.LastUsedAt = s.now()
	s.authSessions[id] = as
	return nil
}

func (s *Store) RotateAuthSession(ctx context.Context, id uuid.UUID, newHash string, newExpiresEpoch int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.authSessions[id]
	if !ok {
		return store.ErrNotFound
	}
	as.RefreshTokenHash = newHash
	as.ExpiresAt = secToTime(newExpiresEpoch)
	as.LastUsedAt = s.now()
	s.authSessions[id] = as
	return nil
}

func (s *Store) RevokeAuthSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.authSessions[id]
	if !ok {
		return store.ErrNotFound
	}
	now := s.now()
	as.RevokedAt = &now
	s.authSessions[id] = as
	return nil
}

func (s *Store) RevokeAllAuthSessions(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, as := range s.authSessions {
		if as.UserID == userID && as.RevokedAt == nil {
			as.RevokedAt = &now
			s.authSessions[id] = as
		}
	}
	return nil
}
