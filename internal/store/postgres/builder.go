package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

const builderSessionColumns = `id, organization_id, created_by, status, llm_provider, llm_model, llm_secret_id,
	latest_intent, selected_component_keys, final_draft, created_at, updated_at`

func scanBuilderSession(row pgx.Row) (store.ToolsetBuilderSession, error) {
	var sess store.ToolsetBuilderSession
	var selectedRaw, draftRaw []byte
	err := row.Scan(&sess.ID, &sess.OrganizationID, &sess.CreatedBy, &sess.Status, &sess.LLM.Provider, &sess.LLM.Model, &sess.LLM.SecretID,
		&sess.LatestIntent, &selectedRaw, &draftRaw, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return store.ToolsetBuilderSession{}, err
	}
	var selected []string
	if err := unmarshalJSON(selectedRaw, &selected); err != nil {
		return store.ToolsetBuilderSession{}, err
	}
	sess.SelectedComponentKeys = selected
	if len(draftRaw) > 0 {
		var draft store.ToolsetDraft
		if err := unmarshalJSON(draftRaw, &draft); err != nil {
			return store.ToolsetBuilderSession{}, err
		}
		sess.FinalDraft = &draft
	}
	return sess, nil
}

func (s *Store) CreateToolsetBuilderSession(ctx context.Context, tc store.TenantCtx, sess store.ToolsetBuilderSession) (store.ToolsetBuilderSession, error) {
	selected, err := toJSONBSlice(sess.SelectedComponentKeys)
	if err != nil {
		return store.ToolsetBuilderSession{}, err
	}
	status := sess.Status
	if status == "" {
		status = store.BuilderActive
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO toolset_builder_sessions (id, organization_id, created_by, status, llm_provider, llm_model, llm_secret_id,
			latest_intent, selected_component_keys, final_draft, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, NULL, now(), now())
		RETURNING `+builderSessionColumns,
		tc.OrganizationID, tc.ActorUserID, status, sess.LLM.Provider, sess.LLM.Model, sess.LLM.SecretID, sess.LatestIntent, selected)
	return scanBuilderSession(row)
}

func (s *Store) GetToolsetBuilderSession(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.ToolsetBuilderSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+builderSessionColumns+` FROM toolset_builder_sessions WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	sess, err := scanBuilderSession(row)
	if err == pgx.ErrNoRows {
		return store.ToolsetBuilderSession{}, store.ErrNotFound
	}
	return sess, err
}

func (s *Store) AppendToolsetBuilderTurn(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, role store.ToolsetBuilderTurnRole, text string) (store.ToolsetBuilderTurn, error) {
	var turn store.ToolsetBuilderTurn
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var status store.ToolsetBuilderStatus
		var orgID uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT organization_id, status FROM toolset_builder_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&orgID, &status); err != nil {
			if err == pgx.ErrNoRows {
				return store.ErrNotFound
			}
			return err
		}
		if orgID != tc.OrganizationID {
			return store.ErrNotFound
		}
		if status != store.BuilderActive {
			return store.ErrPreconditionFailed
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO toolset_builder_turns (id, session_id, role, message_text, created_at)
			VALUES (gen_random_uuid(), $1, $2, $3, now())
			RETURNING id, session_id, role, message_text, created_at`, sessionID, role, text)
		return row.Scan(&turn.ID, &turn.SessionID, &turn.Role, &turn.MessageText, &turn.CreatedAt)
	})
	return turn, err
}

func (s *Store) ListToolsetBuilderTurns(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, limit int) ([]store.ToolsetBuilderTurn, error) {
	var orgID uuid.UUID
	if err := s.pool.QueryRow(ctx, `SELECT organization_id FROM toolset_builder_sessions WHERE id = $1`, sessionID).Scan(&orgID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if orgID != tc.OrganizationID {
		return nil, store.ErrNotFound
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, role, message_text, created_at FROM toolset_builder_turns
		WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]store.ToolsetBuilderTurn, 0)
	for rows.Next() {
		var t store.ToolsetBuilderTurn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.MessageText, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *Store) UpdateToolsetBuilderSelection(ctx context.Context, tc store.TenantCtx, id uuid.UUID, latestIntent string, selected []string) error {
	selectedRaw, err := toJSONBSlice(selected)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE toolset_builder_sessions SET latest_intent = $3, selected_component_keys = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status = 'ACTIVE'`, id, tc.OrganizationID, latestIntent, selectedRaw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetToolsetBuilderSession(ctx, tc, id); getErr != nil {
			return store.ErrNotFound
		}
		return store.ErrPreconditionFailed
	}
	return nil
}

func (s *Store) FinalizeToolsetBuilderSession(ctx context.Context, tc store.TenantCtx, id uuid.UUID, draft store.ToolsetDraft) (store.ToolsetBuilderSession, error) {
	draftRaw, err := toJSONBSlice(draft)
	if err != nil {
		return store.ToolsetBuilderSession{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE toolset_builder_sessions SET status = 'FINALIZED', final_draft = $3, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status = 'ACTIVE'
		RETURNING `+builderSessionColumns, id, tc.OrganizationID, draftRaw)
	sess, err := scanBuilderSession(row)
	if err == pgx.ErrNoRows {
		if _, getErr := s.GetToolsetBuilderSession(ctx, tc, id); getErr != nil {
			return store.ToolsetBuilderSession{}, store.ErrNotFound
		}
		return store.ToolsetBuilderSession{}, store.ErrPreconditionFailed
	}
	return sess, err
}
