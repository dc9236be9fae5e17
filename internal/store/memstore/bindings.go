package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) ListAgentBindings(ctx context.Context, tc store.TenantCtx) ([]store.AgentBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AgentBinding, 0)
	for _, b := range s.bindings {
		if b.OrganizationID == tc.OrganizationID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) CreateAgentBinding(ctx context.Context, tc store.TenantCtx, b store.AgentBinding) (store.AgentBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.New()
	b.OrganizationID = tc.OrganizationID
	s.bindings[b.ID] = b
	return b, nil
}
