package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

const runColumns = `id, organization_id, workflow_id, trigger_type, status, attempt_count, max_attempts,
	input, output, error, requested_by_user_id, created_at, updated_at`

func scanRun(row pgx.Row) (store.WorkflowRun, error) {
	var r store.WorkflowRun
	var inputRaw, outputRaw []byte
	err := row.Scan(&r.ID, &r.OrganizationID, &r.WorkflowID, &r.TriggerType, &r.Status, &r.AttemptCount, &r.MaxAttempts,
		&inputRaw, &outputRaw, &r.Error, &r.RequestedByUserID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return store.WorkflowRun{}, err
	}
	if r.Input, err = fromJSONB(inputRaw); err != nil {
		return store.WorkflowRun{}, err
	}
	if r.Output, err = fromJSONB(outputRaw); err != nil {
		return store.WorkflowRun{}, err
	}
	return r, nil
}

func (s *Store) CreateWorkflowRun(ctx context.Context, tc store.TenantCtx, r store.WorkflowRun) (store.WorkflowRun, error) {
	input, err := toJSONB(r.Input)
	if err != nil {
		return store.WorkflowRun{}, err
	}
	status := r.Status
	if status == "" {
		status = store.RunQueued
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO workflow_runs (id, organization_id, workflow_id, trigger_type, status, attempt_count, max_attempts,
			input, output, error, requested_by_user_id, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 0, $5, $6, '{}', '', $7, now(), now())
		RETURNING `+runColumns,
		tc.OrganizationID, r.WorkflowID, r.TriggerType, status, r.MaxAttempts, input, tc.ActorUserID)
	return scanRun(row)
}

// DeleteQueuedRun only deletes a run that never left status=queued with
// attemptCount=0 (spec §4.5 step 4).
func (s *Store) DeleteQueuedRun(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM workflow_runs
		WHERE id = $1 AND organization_id = $2 AND status = 'queued' AND attempt_count = 0`, id, tc.OrganizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetWorkflowRun(ctx, tc, id); getErr != nil {
			return store.ErrNotFound
		}
		return store.ErrPreconditionFailed
	}
	return nil
}

func (s *Store) GetWorkflowRun(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.WorkflowRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	r, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return store.WorkflowRun{}, store.ErrNotFound
	}
	return r, err
}

func (s *Store) ListWorkflowRuns(ctx context.Context, tc store.TenantCtx, workflowID uuid.UUID, cursor store.Cursor, limit int) ([]store.WorkflowRun, store.Cursor, bool, error) {
	where, cursorArgs := cursorWhere(cursor, 4)
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE organization_id = $2 AND workflow_id = $3`
	args := append([]any{limit + 1, tc.OrganizationID, workflowID}, cursorArgs...)
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT $1"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Cursor{}, false, err
	}
	defer rows.Close()

	out := make([]store.WorkflowRun, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, store.Cursor{}, false, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Cursor{}, false, err
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	var next store.Cursor
	if len(out) > 0 {
		last := out[len(out)-1]
		next = store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return out, next, hasMore, nil
}

var validRunTransitions = map[store.WorkflowRunStatus][]store.WorkflowRunStatus{
	store.RunQueued:  {store.RunRunning, store.RunFailed},
	store.RunRunning: {store.RunSucceeded, store.RunFailed},
}

func (s *Store) TransitionRun(ctx context.Context, tc store.TenantCtx, id uuid.UUID, status store.WorkflowRunStatus, output map[string]any, errMsg string) (store.WorkflowRun, error) {
	var out store.WorkflowRun
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		r, err := scanRun(tx.QueryRow(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = $1 AND organization_id = $2 FOR UPDATE`, id, tc.OrganizationID))
		if err != nil {
			if err == pgx.ErrNoRows {
				return store.ErrNotFound
			}
			return err
		}
		allowed := false
		for _, next := range validRunTransitions[r.Status] {
			if next == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return store.ErrPreconditionFailed
		}

		attemptCount := r.AttemptCount
		if status == store.RunRunning {
			attemptCount++
		}
		outRaw, err := toJSONB(output)
		if err != nil {
			return err
		}
		if output == nil {
			outRaw, _ = toJSONB(r.Output)
		}
		if errMsg == "" {
			errMsg = r.Error
		}
		row := tx.QueryRow(ctx, `
			UPDATE workflow_runs SET status = $3, attempt_count = $4, output = $5, error = $6, updated_at = now()
			WHERE id = $1 AND organization_id = $2
			RETURNING `+runColumns, id, tc.OrganizationID, status, attemptCount, outRaw, errMsg)
		out, err = scanRun(row)
		return err
	})
	return out, err
}
