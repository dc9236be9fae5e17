package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateExecutorPairing(ctx context.Context, tc store.TenantCtx, name, secretHash string) (store.ExecutorPairing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := store.ExecutorPairing{
		ID:             uuid.New(),
		OrganizationID: tc.OrganizationID,
		SecretHash:     secretHash,
		Name:           name,
		IssuedAt:       s.now(),
	}
	s.pairings[p.ID] = p
	return p, nil
}

// RedeemExecutorPairing is one-shot: a pairing already carrying RedeemedAt
// fails with ErrPreconditionFailed rather than minting a second token.
func (s *Store) RedeemExecutorPairing(ctx context.Context, pairingID uuid.UUID, secretHash, newTokenHash string) (store.ExecutorPairing, store.ExecutorToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairings[pairingID]
	if !ok {
		return store.ExecutorPairing{}, store.ExecutorToken{}, store.ErrNotFound
	}
	if p.RedeemedAt != nil {
		return store.ExecutorPairing{}, store.ExecutorToken{}, store.ErrPreconditionFailed
	}
	if p.SecretHash != secretHash {
		return store.ExecutorPairing{}, store.ExecutorToken{}, store.ErrPreconditionFailed
	}

	now := s.now()
	tok := store.ExecutorToken{
		ID:             uuid.New(),
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		TokenHash:      newTokenHash,
		IssuedAt:       now,
	}
	s.executorTokens[tok.ID] = tok

	p.RedeemedAt = &now
	p.ExecutorID = &tok.ID
	s.pairings[pairingID] = p

	return p, tok, nil
}

func (s *Store) RevokeExecutorToken(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.executorTokens[id]
	if !ok || tok.OrganizationID != tc.OrganizationID {
		return store.ErrNotFound
	}
	now := s.now()
	tok.RevokedAt = &now
	s.executorTokens[id] = tok
	return nil
}

func (s *Store) GetExecutorToken(ctx context.Context, id uuid.UUID) (store.ExecutorToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.executorTokens[id]
	if !ok {
		return store.ExecutorToken{}, store.ErrNotFound
	}
	return tok, nil
}
