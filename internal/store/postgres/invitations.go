package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
	"github.com/vespid-ai/control-plane/internal/tokencodec"
)

func (s *Store) CreateInvitation(ctx context.Context, tc store.TenantCtx, emailLower string, role store.RoleKey) (store.Invitation, error) {
	token, err := tokencodec.NewInviteToken(tc.OrganizationID)
	if err != nil {
		return store.Invitation{}, err
	}
	var inv store.Invitation
	row := s.pool.QueryRow(ctx, `
		INSERT INTO invitations (id, organization_id, email_lower, role_key, invited_by_user_id, token, status, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, 'pending', now() + interval '7 days')
		RETURNING id, organization_id, email_lower, role_key, invited_by_user_id, token, status, expires_at`,
		tc.OrganizationID, emailLower, role, tc.ActorUserID, token)
	if err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.EmailLower, &inv.RoleKey, &inv.InvitedByUserID, &inv.Token, &inv.Status, &inv.ExpiresAt); err != nil {
		return store.Invitation{}, err
	}
	return inv, nil
}

func (s *Store) GetInvitationByToken(ctx context.Context, token string) (store.Invitation, error) {
	var inv store.Invitation
	row := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, email_lower, role_key, invited_by_user_id, token, status, expires_at
		FROM invitations WHERE token = $1`, token)
	if err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.EmailLower, &inv.RoleKey, &inv.InvitedByUserID, &inv.Token, &inv.Status, &inv.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return store.Invitation{}, store.ErrNotFound
		}
		return store.Invitation{}, err
	}
	return inv, nil
}

// AcceptInvitation is idempotent once status=accepted (spec §8): a replay
// returns the membership already recorded rather than erroring.
func (s *Store) AcceptInvitation(ctx context.Context, token string, acceptingUserID uuid.UUID) (store.Membership, error) {
	var m store.Membership
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var inv store.Invitation
		row := tx.QueryRow(ctx, `
			SELECT id, organization_id, role_key, status, expires_at
			FROM invitations WHERE token = $1 FOR UPDATE`, token)
		if err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.RoleKey, &inv.Status, &inv.ExpiresAt); err != nil {
			if err == pgx.ErrNoRows {
				return store.ErrNotFound
			}
			return err
		}

		if inv.Status == store.InvitationAccepted {
			return tx.QueryRow(ctx, `
				SELECT organization_id, user_id, role_key FROM memberships
				WHERE organization_id = $1 AND user_id = $2`, inv.OrganizationID, acceptingUserID,
			).Scan(&m.OrganizationID, &m.UserID, &m.RoleKey)
		}
		if inv.Status != store.InvitationPending {
			return store.ErrConflict
		}

		var expired bool
		if err := tx.QueryRow(ctx, `SELECT now() > $1`, inv.ExpiresAt).Scan(&expired); err != nil {
			return err
		}
		if expired {
			_, err := tx.Exec(ctx, `UPDATE invitations SET status = 'expired' WHERE id = $1`, inv.ID)
			if err != nil {
				return err
			}
			return store.ErrConflict
		}

		if _, err := tx.Exec(ctx, `UPDATE invitations SET status = 'accepted' WHERE id = $1`, inv.ID); err != nil {
			return err
		}
		m = store.Membership{OrganizationID: inv.OrganizationID, UserID: acceptingUserID, RoleKey: inv.RoleKey}
		_, err := tx.Exec(ctx, `
			INSERT INTO memberships (organization_id, user_id, role_key)
			VALUES ($1, $2, $3)
			ON CONFLICT (organization_id, user_id) DO UPDATE SET role_key = EXCLUDED.role_key`,
			m.OrganizationID, m.UserID, m.RoleKey)
		return err
	})
	if err != nil {
		return store.Membership{}, err
	}
	return m, nil
}
