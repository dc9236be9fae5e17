package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateExecutorPairing(ctx context.Context, tc store.TenantCtx, name, secretHash string) (store.ExecutorPairing, error) {
	var p store.ExecutorPairing
	row := s.pool.QueryRow(ctx, `
		INSERT INTO executor_pairings (id, organization_id, secret_hash, name, issued_at)
		VALUES (gen_random_uuid(), $1, $2, $3, now())
		RETURNING id, organization_id, secret_hash, name, issued_at, redeemed_at, executor_id`,
		tc.OrganizationID, secretHash, name)
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.SecretHash, &p.Name, &p.IssuedAt, &p.RedeemedAt, &p.ExecutorID); err != nil {
		return store.ExecutorPairing{}, err
	}
	return p, nil
}

// RedeemExecutorPairing is one-shot: redeemed_at IS NULL is part of the
// WHERE clause, so a concurrent second redemption attempt finds zero rows
// and reports ErrPreconditionFailed rather than minting a second token.
func (s *Store) RedeemExecutorPairing(ctx context.Context, pairingID uuid.UUID, secretHash, newTokenHash string) (store.ExecutorPairing, store.ExecutorToken, error) {
	var p store.ExecutorPairing
	var tok store.ExecutorToken
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT id, organization_id, secret_hash, name, issued_at, redeemed_at, executor_id
			FROM executor_pairings WHERE id = $1 FOR UPDATE`, pairingID,
		).Scan(&p.ID, &p.OrganizationID, &p.SecretHash, &p.Name, &p.IssuedAt, &p.RedeemedAt, &p.ExecutorID); err != nil {
			if err == pgx.ErrNoRows {
				return store.ErrNotFound
			}
			return err
		}
		if p.RedeemedAt != nil || p.SecretHash != secretHash {
			return store.ErrPreconditionFailed
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO executor_tokens (id, organization_id, name, token_hash, issued_at)
			VALUES (gen_random_uuid(), $1, $2, $3, now())
			RETURNING id, organization_id, name, token_hash, issued_at, revoked_at`,
			p.OrganizationID, p.Name, newTokenHash)
		if err := row.Scan(&tok.ID, &tok.OrganizationID, &tok.Name, &tok.TokenHash, &tok.IssuedAt, &tok.RevokedAt); err != nil {
			return err
		}

		row2 := tx.QueryRow(ctx, `
			UPDATE executor_pairings SET redeemed_at = now(), executor_id = $2
			WHERE id = $1 AND redeemed_at IS NULL
			RETURNING id, organization_id, secret_hash, name, issued_at, redeemed_at, executor_id`, pairingID, tok.ID)
		return row2.Scan(&p.ID, &p.OrganizationID, &p.SecretHash, &p.Name, &p.IssuedAt, &p.RedeemedAt, &p.ExecutorID)
	})
	if err == pgx.ErrNoRows {
		return store.ExecutorPairing{}, store.ExecutorToken{}, store.ErrPreconditionFailed
	}
	if err != nil {
		return store.ExecutorPairing{}, store.ExecutorToken{}, err
	}
	return p, tok, nil
}

func (s *Store) RevokeExecutorToken(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE executor_tokens SET revoked_at = now()
		WHERE id = $1 AND organization_id = $2`, id, tc.OrganizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetExecutorToken(ctx context.Context, id uuid.UUID) (store.ExecutorToken, error) {
	var tok store.ExecutorToken
	row := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, token_hash, issued_at, revoked_at FROM executor_tokens WHERE id = $1`, id)
	if err := row.Scan(&tok.ID, &tok.OrganizationID, &tok.Name, &tok.TokenHash, &tok.IssuedAt, &tok.RevokedAt); err != nil {
		if err == pgx.ErrNoRows {
			return store.ExecutorToken{}, store.ErrNotFound
		}
		return store.ExecutorToken{}, err
	}
	return tok, nil
}
