package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

const toolsetColumns = `id, organization_id, name, draft, visibility, public_slug, published_at, created_by, created_at, updated_at`

func scanToolset(row pgx.Row) (store.Toolset, error) {
	var t store.Toolset
	var draftRaw []byte
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &draftRaw, &t.Visibility, &t.PublicSlug, &t.PublishedAt, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return store.Toolset{}, err
	}
	if len(draftRaw) > 0 {
		if err := unmarshalJSON(draftRaw, &t.Draft); err != nil {
			return store.Toolset{}, err
		}
	}
	return t, nil
}

func (s *Store) CreateToolset(ctx context.Context, tc store.TenantCtx, t store.Toolset) (store.Toolset, error) {
	draftRaw, err := toJSONBSlice(t.Draft)
	if err != nil {
		return store.Toolset{}, err
	}
	visibility := t.Visibility
	if visibility == "" {
		visibility = store.ToolsetPrivate
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO toolsets (id, organization_id, name, draft, visibility, public_slug, published_at, created_by, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULL, NULL, $5, now(), now())
		RETURNING `+toolsetColumns, tc.OrganizationID, t.Name, draftRaw, visibility, tc.ActorUserID)
	return scanToolset(row)
}

func (s *Store) GetToolset(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.Toolset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+toolsetColumns+` FROM toolsets WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	t, err := scanToolset(row)
	if err == pgx.ErrNoRows {
		return store.Toolset{}, store.ErrNotFound
	}
	return t, err
}

func (s *Store) PublishToolset(ctx context.Context, tc store.TenantCtx, id uuid.UUID, visibility store.ToolsetVisibility, slug string) (store.Toolset, error) {
	var out store.Toolset
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := scanToolset(tx.QueryRow(ctx, `SELECT `+toolsetColumns+` FROM toolsets WHERE id = $1 AND organization_id = $2 FOR UPDATE`, id, tc.OrganizationID))
		if err != nil {
			if err == pgx.ErrNoRows {
				return store.ErrNotFound
			}
			return err
		}
		var slugArg any
		if visibility == store.ToolsetPublic {
			slugArg = slug
		}
		row := tx.QueryRow(ctx, `
			UPDATE toolsets SET visibility = $3, public_slug = $4, published_at = now(), updated_at = now()
			WHERE id = $1 AND organization_id = $2
			RETURNING `+toolsetColumns, id, tc.OrganizationID, visibility, slugArg)
		out, err = scanToolset(row)
		return err
	})
	if isUniqueViolation(err) {
		return store.Toolset{}, store.ErrConflict
	}
	return out, err
}

func (s *Store) UnpublishToolset(ctx context.Context, tc store.TenantCtx, id uuid.UUID, restoreVisibility store.ToolsetVisibility) (store.Toolset, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE toolsets SET visibility = $3, public_slug = NULL, published_at = NULL, updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING `+toolsetColumns, id, tc.OrganizationID, restoreVisibility)
	t, err := scanToolset(row)
	if err == pgx.ErrNoRows {
		return store.Toolset{}, store.ErrNotFound
	}
	return t, err
}
