package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateAuthSession(ctx context.Context, as store.AuthSession) (store.AuthSession, error) {
	if as.ID == uuid.Nil {
		as.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO auth_sessions (id, user_id, refresh_token_hash, expires_at, user_agent, ip, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, user_id, refresh_token_hash, expires_at, revoked_at, user_agent, ip, last_used_at`,
		as.ID, as.UserID, as.RefreshTokenHash, as.ExpiresAt, as.UserAgent, as.IP)
	var out store.AuthSession
	if err := row.Scan(&out.ID, &out.UserID, &out.RefreshTokenHash, &out.ExpiresAt, &out.RevokedAt, &out.UserAgent, &out.IP, &out.LastUsedAt); err != nil {
		return store.AuthSession{}, err
	}
	return out, nil
}

func (s *Store) GetAuthSession(ctx context.Context, id uuid.UUID) (store.AuthSession, error) {
	var out store.AuthSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, refresh_token_hash, expires_at, revoked_at, user_agent, ip, last_used_at
		FROM auth_sessions WHERE id = $1`, id)
	if err := row.Scan(&out.ID, &out.UserID, &out.RefreshTokenHash, &out.ExpiresAt, &out.RevokedAt, &out.UserAgent, &out.IP, &out.LastUsedAt); err != nil {
		if err == pgx.ErrNoRows {
			return store.AuthSession{}, store.ErrNotFound
		}
		return store.AuthSession{}, err
	}
	return out, nil
}

func (s *Store) TouchAuthSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE auth_sessions SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RotateAuthSession(ctx context.Context, id uuid.UUID, newHash string, newExpiresEpoch int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE auth_sessions
		SET refresh_token_hash = $2, expires_at = to_timestamp($3), last_used_at = now()
		WHERE id = $1`, id, newHash, newExpiresEpoch)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RevokeAuthSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE auth_sessions SET revoked_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RevokeAllAuthSessions(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE auth_sessions SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}
