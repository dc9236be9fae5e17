package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateAgentSession(ctx context.Context, tc store.TenantCtx, sess store.AgentSession) (store.AgentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessionsByKey[sess.SessionKey]; ok {
		return store.AgentSession{}, store.ErrConflict
	}
	sess.ID = uuid.New()
	sess.OrganizationID = tc.OrganizationID
	if sess.Status == "" {
		sess.Status = store.AgentSessionActive
	}
	now := s.now()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	sess.LastActivityAt = now
	s.agentSessions[sess.ID] = sess
	s.sessionsByKey[sess.SessionKey] = sess.ID
	return sess, nil
}

func (s *Store) GetAgentSessionByKey(ctx context.Context, tc store.TenantCtx, sessionKey string) (store.AgentSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessionsByKey[sessionKey]
	if !ok {
		return store.AgentSession{}, false, nil
	}
	sess := s.agentSessions[id]
	if sess.OrganizationID != tc.OrganizationID {
		return store.AgentSession{}, false, nil
	}
	return sess, true, nil
}

func (s *Store) GetAgentSession(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.AgentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.agentSessions[id]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return store.AgentSession{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) UpdateAgentSessionPinning(ctx context.Context, tc store.TenantCtx, id uuid.UUID, pinnedAgentID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.agentSessions[id]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return store.ErrNotFound
	}
	sess.PinnedAgentID = pinnedAgentID
	sess.UpdatedAt = s.now()
	s.agentSessions[id] = sess
	return nil
}

func (s *Store) TouchAgentSessionActivity(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.agentSessions[id]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return store.ErrNotFound
	}
	sess.LastActivityAt = s.now()
	s.agentSessions[id] = sess
	return nil
}

func idemKey(sessionID uuid.UUID, idempotencyKey string) string {
	return fmt.Sprintf("%s|%s", sessionID, idempotencyKey)
}

// AppendSessionEvent enforces the idempotent-append contract (spec §8): a
// replayed (sessionId, idempotencyKey) pair returns the original event with
// created=false. seq is assigned strictly monotone per session (spec §5)
// under the same lock that performs the idempotency check, so concurrent
// appends never race on seq.
func (s *Store) AppendSessionEvent(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, eventType string, level store.AgentSessionEventLevel, idempotencyKey string, payload map[string]any) (store.AgentSessionEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.agentSessions[sessionID]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return store.AgentSessionEvent{}, false, store.ErrNotFound
	}

	key := idemKey(sessionID, idempotencyKey)
	if eventID, ok := s.eventsByIdemKey[key]; ok {
		for _, e := range s.events[sessionID] {
			if e.ID == eventID {
				return e, false, nil
			}
		}
	}

	existing := s.events[sessionID]
	nextSeq := 0
	if len(existing) > 0 {
		nextSeq = existing[len(existing)-1].Seq + 1
	}
	event := store.AgentSessionEvent{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Seq:            nextSeq,
		EventType:      eventType,
		Level:          level,
		IdempotencyKey: idempotencyKey,
		Payload:        payload,
		CreatedAt:      s.now(),
	}
	s.events[sessionID] = append(existing, event)
	s.eventsByIdemKey[key] = event.ID
	return event, true, nil
}

func (s *Store) ListSessionEvents(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, afterSeq int, limit int) ([]store.AgentSessionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.agentSessions[sessionID]
	if !ok || sess.OrganizationID != tc.OrganizationID {
		return nil, store.ErrNotFound
	}
	out := make([]store.AgentSessionEvent, 0)
	for _, e := range s.events[sessionID] {
		if e.Seq > afterSeq {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
