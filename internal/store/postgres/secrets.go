package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

func scanConnectorSecret(row pgx.Row) (store.ConnectorSecret, error) {
	var cs store.ConnectorSecret
	err := row.Scan(&cs.ID, &cs.OrganizationID, &cs.ConnectorID, &cs.Name, &cs.KekID,
		&cs.DekCiphertext, &cs.DekIV, &cs.DekTag, &cs.SecretCiphertext, &cs.SecretIV, &cs.SecretTag,
		&cs.CreatedBy, &cs.UpdatedBy, &cs.CreatedAt, &cs.UpdatedAt)
	return cs, err
}

const connectorSecretColumns = `id, organization_id, connector_id, name, kek_id,
	dek_ciphertext, dek_iv, dek_tag, secret_ciphertext, secret_iv, secret_tag,
	created_by, updated_by, created_at, updated_at`

func (s *Store) CreateConnectorSecret(ctx context.Context, tc store.TenantCtx, cs store.ConnectorSecret) (store.ConnectorSecret, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO connector_secrets (id, organization_id, connector_id, name, kek_id,
			dek_ciphertext, dek_iv, dek_tag, secret_ciphertext, secret_iv, secret_tag,
			created_by, updated_by, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, now(), now())
		RETURNING `+connectorSecretColumns,
		tc.OrganizationID, cs.ConnectorID, cs.Name, cs.KekID,
		cs.DekCiphertext, cs.DekIV, cs.DekTag, cs.SecretCiphertext, cs.SecretIV, cs.SecretTag, tc.ActorUserID)
	out, err := scanConnectorSecret(row)
	if isUniqueViolation(err) {
		return store.ConnectorSecret{}, store.ErrConflict
	}
	return out, err
}

func (s *Store) GetConnectorSecret(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.ConnectorSecret, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+connectorSecretColumns+` FROM connector_secrets WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	out, err := scanConnectorSecret(row)
	if err == pgx.ErrNoRows {
		return store.ConnectorSecret{}, store.ErrNotFound
	}
	return out, err
}

func (s *Store) GetConnectorSecretByName(ctx context.Context, tc store.TenantCtx, connectorID, name string) (store.ConnectorSecret, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+connectorSecretColumns+` FROM connector_secrets
		WHERE organization_id = $1 AND connector_id = $2 AND name = $3`, tc.OrganizationID, connectorID, name)
	out, err := scanConnectorSecret(row)
	if err == pgx.ErrNoRows {
		return store.ConnectorSecret{}, store.ErrNotFound
	}
	return out, err
}

func (s *Store) RotateConnectorSecret(ctx context.Context, tc store.TenantCtx, id uuid.UUID, updated store.ConnectorSecret) (store.ConnectorSecret, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE connector_secrets SET
			kek_id = $3, dek_ciphertext = $4, dek_iv = $5, dek_tag = $6,
			secret_ciphertext = $7, secret_iv = $8, secret_tag = $9,
			updated_by = $10, updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING `+connectorSecretColumns,
		id, tc.OrganizationID, updated.KekID, updated.DekCiphertext, updated.DekIV, updated.DekTag,
		updated.SecretCiphertext, updated.SecretIV, updated.SecretTag, tc.ActorUserID)
	out, err := scanConnectorSecret(row)
	if err == pgx.ErrNoRows {
		return store.ConnectorSecret{}, store.ErrNotFound
	}
	return out, err
}

func (s *Store) DeleteConnectorSecret(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM connector_secrets WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListConnectorSecrets(ctx context.Context, tc store.TenantCtx) ([]store.ConnectorSecret, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+connectorSecretColumns+` FROM connector_secrets WHERE organization_id = $1 ORDER BY created_at DESC`, tc.OrganizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]store.ConnectorSecret, 0)
	for rows.Next() {
		cs, err := scanConnectorSecret(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
