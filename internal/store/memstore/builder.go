package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateToolsetBuilderSession(ctx context.Context, tc store.TenantCtx, sess store.ToolsetBuilderSession) (store.ToolsetBuilderSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = uuid.New()
	sess.OrganizationID = tc.OrganizationID
	sess.CreatedBy = tc.ActorUserID
	if sess.Status == "" {
		sess.Status = store.BuilderActive
	}
	now := s.now()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	s.builderSessions[sess.ID] = sess
	return sess, nil
}

func (s *Store) GetToolsetBuilderSession(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.ToolsetBuilderSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.builderSessions[id]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return store.ToolsetBuilderSession{}, store.ErrNotFound
	}
	return sess, nil
}

// AppendToolsetBuilderTurn rejects appends to a session that has already
// reached the FINALIZED terminal state, spec §4.8.
func (s *Store) AppendToolsetBuilderTurn(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, role store.ToolsetBuilderTurnRole, text string) (store.ToolsetBuilderTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.builderSessions[sessionID]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return store.ToolsetBuilderTurn{}, store.ErrNotFound
	}
	if sess.Status != store.BuilderActive {
		return store.ToolsetBuilderTurn{}, store.ErrPreconditionFailed
	}
	turn := store.ToolsetBuilderTurn{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Role:        role,
		MessageText: text,
		CreatedAt:   s.now(),
	}
	s.builderTurns[sessionID] = append(s.builderTurns[sessionID], turn)
	return turn, nil
}

func (s *Store) ListToolsetBuilderTurns(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, limit int) ([]store.ToolsetBuilderTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.builderSessions[sessionID]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return nil, store.ErrNotFound
	}
	turns := s.builderTurns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]store.ToolsetBuilderTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *Store) UpdateToolsetBuilderSelection(ctx context.Context, tc store.TenantCtx, id uuid.UUID, latestIntent string, selected []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.builderSessions[id]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return store.ErrNotFound
	}
	if sess.Status != store.BuilderActive {
		return store.ErrPreconditionFailed
	}
	sess.LatestIntent = latestIntent
	sess.SelectedComponentKeys = selected
	sess.UpdatedAt = s.now()
	s.builderSessions[id] = sess
	return nil
}

// FinalizeToolsetBuilderSession transitions ACTIVE -> FINALIZED, spec §4.8's
// terminal state: no further turns or selection updates are accepted after
// this returns successfully.
func (s *Store) FinalizeToolsetBuilderSession(ctx context.Context, tc store.TenantCtx, id uuid.UUID, draft store.ToolsetDraft) (store.ToolsetBuilderSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.builderSessions[id]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return store.ToolsetBuilderSession{}, store.ErrNotFound
	}
	if sess.Status != store.BuilderActive {
		return store.ToolsetBuilderSession{}, store.ErrPreconditionFailed
	}
	sess.Status = store.BuilderFinalized
	sess.FinalDraft = &draft
	sess.UpdatedAt = s.now()
	s.builderSessions[id] = sess
	return sess, nil
}
