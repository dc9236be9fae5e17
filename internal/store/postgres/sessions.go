package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

const sessionColumns = `id, organization_id, session_key, scope, routed_agent_id, binding_id, pinned_agent_id,
	engine_id, toolset_id, llm_provider, llm_model, llm_secret_id, prompt_system, prompt_instructions,
	tools_allow, limits, executor_selector, status, created_at, updated_at, last_activity_at`

func scanSession(row pgx.Row) (store.AgentSession, error) {
	var sess store.AgentSession
	var toolsAllowRaw, limitsRaw, selectorRaw []byte
	err := row.Scan(&sess.ID, &sess.OrganizationID, &sess.SessionKey, &sess.Scope, &sess.RoutedAgentID, &sess.BindingID, &sess.PinnedAgentID,
		&sess.EngineID, &sess.ToolsetID, &sess.LLM.Provider, &sess.LLM.Model, &sess.LLM.SecretID, &sess.Prompt.System, &sess.Prompt.Instructions,
		&toolsAllowRaw, &limitsRaw, &selectorRaw, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt, &sess.LastActivityAt)
	if err != nil {
		return store.AgentSession{}, err
	}
	var toolsAllow []string
	if len(toolsAllowRaw) > 0 {
		if err := unmarshalJSON(toolsAllowRaw, &toolsAllow); err != nil {
			return store.AgentSession{}, err
		}
	}
	sess.ToolsAllow = toolsAllow
	if sess.Limits, err = fromJSONB(limitsRaw); err != nil {
		return store.AgentSession{}, err
	}
	if sess.ExecutorSelector, err = fromJSONB(selectorRaw); err != nil {
		return store.AgentSession{}, err
	}
	return sess, nil
}

func (s *Store) CreateAgentSession(ctx context.Context, tc store.TenantCtx, sess store.AgentSession) (store.AgentSession, error) {
	toolsAllow, err := toJSONBSlice(sess.ToolsAllow)
	if err != nil {
		return store.AgentSession{}, err
	}
	limits, err := toJSONB(sess.Limits)
	if err != nil {
		return store.AgentSession{}, err
	}
	selector, err := toJSONB(sess.ExecutorSelector)
	if err != nil {
		return store.AgentSession{}, err
	}
	status := sess.Status
	if status == "" {
		status = store.AgentSessionActive
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agent_sessions (id, organization_id, session_key, scope, routed_agent_id, binding_id, pinned_agent_id,
			engine_id, toolset_id, llm_provider, llm_model, llm_secret_id, prompt_system, prompt_instructions,
			tools_allow, limits, executor_selector, status, created_at, updated_at, last_activity_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now(), now(), now())
		RETURNING `+sessionColumns,
		tc.OrganizationID, sess.SessionKey, sess.Scope, sess.RoutedAgentID, sess.BindingID, sess.PinnedAgentID,
		sess.EngineID, sess.ToolsetID, sess.LLM.Provider, sess.LLM.Model, sess.LLM.SecretID, sess.Prompt.System, sess.Prompt.Instructions,
		toolsAllow, limits, selector, status)
	out, err := scanSession(row)
	if isUniqueViolation(err) {
		return store.AgentSession{}, store.ErrConflict
	}
	return out, err
}

func (s *Store) GetAgentSessionByKey(ctx context.Context, tc store.TenantCtx, sessionKey string) (store.AgentSession, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM agent_sessions WHERE organization_id = $1 AND session_key = $2`, tc.OrganizationID, sessionKey)
	out, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return store.AgentSession{}, false, nil
	}
	if err != nil {
		return store.AgentSession{}, false, err
	}
	return out, true, nil
}

func (s *Store) GetAgentSession(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.AgentSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM agent_sessions WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	out, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return store.AgentSession{}, store.ErrNotFound
	}
	return out, err
}

func (s *Store) UpdateAgentSessionPinning(ctx context.Context, tc store.TenantCtx, id uuid.UUID, pinnedAgentID *uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agent_sessions SET pinned_agent_id = $3, updated_at = now()
		WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID, pinnedAgentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) TouchAgentSessionActivity(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agent_sessions SET last_activity_at = now()
		WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendSessionEvent relies on a unique (session_id, idempotency_key)
// constraint plus a per-session sequence to enforce spec §8's idempotent
// append and spec §5's strictly-monotone seq, all inside one transaction.
func (s *Store) AppendSessionEvent(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, eventType string, level store.AgentSessionEventLevel, idempotencyKey string, payload map[string]any) (store.AgentSessionEvent, bool, error) {
	var event store.AgentSessionEvent
	created := false
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var orgID uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT organization_id FROM agent_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&orgID); err != nil {
			if err == pgx.ErrNoRows {
				return store.ErrNotFound
			}
			return err
		}
		if orgID != tc.OrganizationID {
			return store.ErrNotFound
		}

		existing, err := scanEvent(tx.QueryRow(ctx, `
			SELECT id, session_id, seq, event_type, level, idempotency_key, payload, created_at
			FROM agent_session_events WHERE session_id = $1 AND idempotency_key = $2`, sessionID, idempotencyKey))
		if err == nil {
			event = existing
			return nil
		}
		if err != pgx.ErrNoRows {
			return err
		}

		payloadRaw, err := toJSONB(payload)
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO agent_session_events (id, session_id, seq, event_type, level, idempotency_key, payload, created_at)
			VALUES (gen_random_uuid(), $1,
				coalesce((SELECT max(seq) + 1 FROM agent_session_events WHERE session_id = $1), 0),
				$2, $3, $4, $5, now())
			RETURNING id, session_id, seq, event_type, level, idempotency_key, payload, created_at`,
			sessionID, eventType, level, idempotencyKey, payloadRaw)
		event, err = scanEvent(row)
		created = true
		return err
	})
	return event, created, err
}

func scanEvent(row pgx.Row) (store.AgentSessionEvent, error) {
	var e store.AgentSessionEvent
	var payloadRaw []byte
	err := row.Scan(&e.ID, &e.SessionID, &e.Seq, &e.EventType, &e.Level, &e.IdempotencyKey, &payloadRaw, &e.CreatedAt)
	if err != nil {
		return store.AgentSessionEvent{}, err
	}
	if e.Payload, err = fromJSONB(payloadRaw); err != nil {
		return store.AgentSessionEvent{}, err
	}
	return e, nil
}

func (s *Store) ListSessionEvents(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, afterSeq int, limit int) ([]store.AgentSessionEvent, error) {
	var orgID uuid.UUID
	if err := s.pool.QueryRow(ctx, `SELECT organization_id FROM agent_sessions WHERE id = $1`, sessionID).Scan(&orgID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if orgID != tc.OrganizationID {
		return nil, store.ErrNotFound
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, seq, event_type, level, idempotency_key, payload, created_at
		FROM agent_session_events WHERE session_id = $1 AND seq > $2
		ORDER BY seq ASC LIMIT $3`, sessionID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]store.AgentSessionEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
