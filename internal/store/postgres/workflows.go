package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

const workflowColumns = `id, organization_id, family_id, revision, source_workflow_id, name, status,
	version, dsl, editor_state, created_by, published_at, created_at, updated_at`

func scanWorkflow(row pgx.Row) (store.Workflow, error) {
	var w store.Workflow
	var dslRaw, editorRaw []byte
	err := row.Scan(&w.ID, &w.OrganizationID, &w.FamilyID, &w.Revision, &w.SourceWorkflowID, &w.Name, &w.Status,
		&w.Version, &dslRaw, &editorRaw, &w.CreatedBy, &w.PublishedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return store.Workflow{}, err
	}
	if w.DSL, err = fromJSONB(dslRaw); err != nil {
		return store.Workflow{}, err
	}
	if w.EditorState, err = fromJSONB(editorRaw); err != nil {
		return store.Workflow{}, err
	}
	return w, nil
}

func (s *Store) CreateWorkflow(ctx context.Context, tc store.TenantCtx, w store.Workflow) (store.Workflow, error) {
	dsl, err := toJSONB(w.DSL)
	if err != nil {
		return store.Workflow{}, err
	}
	editor, err := toJSONB(w.EditorState)
	if err != nil {
		return store.Workflow{}, err
	}
	familyID := w.FamilyID
	newID := uuid.New()
	if familyID == uuid.Nil {
		familyID = newID
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO workflows (id, organization_id, family_id, revision, source_workflow_id, name, status,
			version, dsl, editor_state, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, 'draft', 1, $6, $7, $8, now(), now())
		RETURNING `+workflowColumns,
		newID, tc.OrganizationID, familyID, w.SourceWorkflowID, w.Name, dsl, editor, tc.ActorUserID)
	return scanWorkflow(row)
}

func (s *Store) GetWorkflow(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.Workflow, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	w, err := scanWorkflow(row)
	if err == pgx.ErrNoRows {
		return store.Workflow{}, store.ErrNotFound
	}
	return w, err
}

func (s *Store) ListWorkflows(ctx context.Context, tc store.TenantCtx, cursor store.Cursor, limit int) ([]store.Workflow, store.Cursor, bool, error) {
	where, cursorArgs := cursorWhere(cursor, 3)
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE organization_id = $2`
	args := append([]any{limit + 1, tc.OrganizationID}, cursorArgs...)
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT $1"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Cursor{}, false, err
	}
	defer rows.Close()

	out := make([]store.Workflow, 0)
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, store.Cursor{}, false, err
		}
		out = append(out, w)
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

func (s *Store) UpdateDraftWorkflow(ctx context.Context, tc store.TenantCtx, id uuid.UUID, dsl, editorState map[string]any) (store.Workflow, error) {
	dslRaw, err := toJSONB(dsl)
	if err != nil {
		return store.Workflow{}, err
	}
	editorRaw, err := toJSONB(editorState)
	if err != nil {
		return store.Workflow{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE workflows SET dsl = $3, editor_state = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status = 'draft'
		RETURNING `+workflowColumns, id, tc.OrganizationID, dslRaw, editorRaw)
	w, err := scanWorkflow(row)
	if err == pgx.ErrNoRows {
		if _, getErr := s.GetWorkflow(ctx, tc, id); getErr != nil {
			return store.Workflow{}, store.ErrNotFound
		}
		return store.Workflow{}, store.ErrPreconditionFailed
	}
	return w, err
}

func (s *Store) PublishWorkflow(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.Workflow, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE workflows SET status = 'published', published_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status = 'draft'
		RETURNING `+workflowColumns, id, tc.OrganizationID)
	w, err := scanWorkflow(row)
	if err == pgx.ErrNoRows {
		if _, getErr := s.GetWorkflow(ctx, tc, id); getErr != nil {
			return store.Workflow{}, store.ErrNotFound
		}
		return store.Workflow{}, store.ErrPreconditionFailed
	}
	return w, err
}

func (s *Store) ListRevisions(ctx context.Context, tc store.TenantCtx, familyID uuid.UUID) ([]store.Workflow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+workflowColumns+` FROM workflows
		WHERE organization_id = $1 AND family_id = $2
		ORDER BY revision ASC`, tc.OrganizationID, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]store.Workflow, 0)
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) CreateDraftRevision(ctx context.Context, tc store.TenantCtx, sourceWorkflowID uuid.UUID) (store.Workflow, error) {
	var out store.Workflow
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		src, err := scanWorkflow(tx.QueryRow(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1 AND organization_id = $2 FOR UPDATE`, sourceWorkflowID, tc.OrganizationID))
		if err != nil {
			if err == pgx.ErrNoRows {
				return store.ErrNotFound
			}
			return err
		}
		var maxRevision int
		if err := tx.QueryRow(ctx, `SELECT max(revision) FROM workflows WHERE family_id = $1`, src.FamilyID).Scan(&maxRevision); err != nil {
			return err
		}
		dsl, err := toJSONB(src.DSL)
		if err != nil {
			return err
		}
		editor, err := toJSONB(src.EditorState)
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO workflows (id, organization_id, family_id, revision, source_workflow_id, name, status,
				version, dsl, editor_state, created_by, created_at, updated_at)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, 'draft', 1, $6, $7, $8, now(), now())
			RETURNING `+workflowColumns,
			tc.OrganizationID, src.FamilyID, maxRevision+1, sourceWorkflowID, src.Name, dsl, editor, tc.ActorUserID)
		out, err = scanWorkflow(row)
		return err
	})
	return out, err
}
