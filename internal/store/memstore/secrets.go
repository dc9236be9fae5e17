package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateConnectorSecret(ctx context.Context, tc store.TenantCtx, cs store.ConnectorSecret) (store.ConnectorSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.secrets {
		if existing.OrganizationID == tc.OrganizationID && existing.ConnectorID == cs.ConnectorID && existing.Name == cs.Name {
			return store.ConnectorSecret{}, store.ErrConflict
		}
	}
	cs.ID = uuid.New()
	cs.OrganizationID = tc.OrganizationID
	cs.CreatedAt = s.now()
	cs.UpdatedAt = cs.CreatedAt
	s.secrets[cs.ID] = cs
	return cs, nil
}

func (s *Store) GetConnectorSecret(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.ConnectorSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.secrets[id]
	if !ok || cs.OrganizationID != tc.OrganizationID {
		return store.ConnectorSecret{}, store.ErrNotFound
	}
	return cs, nil
}

func (s *Store) GetConnectorSecretByName(ctx context.Context, tc store.TenantCtx, connectorID, name string) (store.ConnectorSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cs := range s.secrets {
		if cs.OrganizationID == tc.OrganizationID && cs.ConnectorID == connectorID && cs.Name == name {
			return cs, nil
		}
	}
	return store.ConnectorSecret{}, store.ErrNotFound
}

func (s *Store) RotateConnectorSecret(ctx context.Context, tc store.TenantCtx, id uuid.UUID, updated store.ConnectorSecret) (store.ConnectorSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.secrets[id]
	if !ok || existing.OrganizationID != tc.OrganizationID {
		return store.ConnectorSecret{}, store.ErrNotFound
	}
	updated.ID = id
	updated.OrganizationID = tc.OrganizationID
	updated.ConnectorID = existing.ConnectorID
	updated.Name = existing.Name
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	updated.UpdatedAt = s.now()
	s.secrets[id] = updated
	return updated, nil
}

func (s *Store) DeleteConnectorSecret(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.secrets[id]
	if !ok || existing.OrganizationID != tc.OrganizationID {
		return store.ErrNotFound
	}
	delete(s.secrets, id)
	return nil
}

func (s *Store) ListConnectorSecrets(ctx context.Context, tc store.TenantCtx) ([]store.ConnectorSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ConnectorSecret, 0)
	for _, cs := range s.secrets {
		if cs.OrganizationID == tc.OrganizationID {
			out = append(out, cs)
		}
	}
	return out, nil
}
