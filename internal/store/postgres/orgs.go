package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateOrganization(ctx context.Context, tc store.TenantCtx, slug, name string) (store.Organization, error) {
	var org store.Organization
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		settings, _ := toJSONB(nil)
		row := tx.QueryRow(ctx, `
			INSERT INTO organizations (id, slug, name, settings, created_at)
			VALUES (gen_random_uuid(), $1, $2, $3, now())
			RETURNING id, slug, name, created_at`, slug, name, settings)
		if err := row.Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt); err != nil {
			return err
		}
		org.Settings = map[string]any{}
		_, err := tx.Exec(ctx, `
			INSERT INTO memberships (organization_id, user_id, role_key)
			VALUES ($1, $2, 'owner')`, org.ID, tc.ActorUserID)
		return err
	})
	if isUniqueViolation(err) {
		return store.Organization{}, store.ErrConflict
	}
	if err != nil {
		return store.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetOrganization(ctx context.Context, id uuid.UUID) (store.Organization, error) {
	var org store.Organization
	var settingsRaw []byte
	row := s.pool.QueryRow(ctx, `SELECT id, slug, name, settings, created_at FROM organizations WHERE id = $1`, id)
	if err := row.Scan(&org.ID, &org.Slug, &org.Name, &settingsRaw, &org.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return store.Organization{}, store.ErrNotFound
		}
		return store.Organization{}, err
	}
	settings, err := fromJSONB(settingsRaw)
	if err != nil {
		return store.Organization{}, err
	}
	org.Settings = settings
	return org, nil
}

func (s *Store) GetOrgSettings(ctx context.Context, tc store.TenantCtx) (map[string]any, error) {
	var settingsRaw []byte
	row := s.pool.QueryRow(ctx, `SELECT settings FROM organizations WHERE id = $1`, tc.OrganizationID)
	if err := row.Scan(&settingsRaw); err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return fromJSONB(settingsRaw)
}

func (s *Store) PutOrgSettings(ctx context.Context, tc store.TenantCtx, settings map[string]any) error {
	raw, err := toJSONB(settings)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE organizations SET settings = $2 WHERE id = $1`, tc.OrganizationID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, organizationID, userID uuid.UUID) (store.Membership, error) {
	var m store.Membership
	row := s.pool.QueryRow(ctx, `
		SELECT organization_id, user_id, role_key FROM memberships
		WHERE organization_id = $1 AND user_id = $2`, organizationID, userID)
	if err := row.Scan(&m.OrganizationID, &m.UserID, &m.RoleKey); err != nil {
		if err == pgx.ErrNoRows {
			return store.Membership{}, store.ErrNotFound
		}
		return store.Membership{}, err
	}
	return m, nil
}

// SetMemberRole re-checks the "only an owner may grant owner" invariant
// (spec §3) inside the same transaction as the update.
func (s *Store) SetMemberRole(ctx context.Context, tc store.TenantCtx, memberUserID uuid.UUID, role store.RoleKey) error {
	return s.withTenantTx(ctx, tc, func(tx pgx.Tx) error {
		if role == store.RoleOwner {
			var actorRole store.RoleKey
			err := tx.QueryRow(ctx, `
				SELECT role_key FROM memberships WHERE organization_id = $1 AND user_id = $2`,
				tc.OrganizationID, tc.ActorUserID).Scan(&actorRole)
			if err != nil {
				if err == pgx.ErrNoRows {
					return store.ErrPreconditionFailed
				}
				return err
			}
			if actorRole != store.RoleOwner {
				return store.ErrPreconditionFailed
			}
		}
		tag, err := tx.Exec(ctx, `
			UPDATE memberships SET role_key = $3
			WHERE organization_id = $1 AND user_id = $2`, tc.OrganizationID, memberUserID, role)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) AddMembership(ctx context.Context, tc store.TenantCtx, userID uuid.UUID, role store.RoleKey) (store.Membership, error) {
	m := store.Membership{OrganizationID: tc.OrganizationID, UserID: userID, RoleKey: role}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO memberships (organization_id, user_id, role_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role_key = EXCLUDED.role_key`,
		tc.OrganizationID, userID, role)
	if err != nil {
		return store.Membership{}, err
	}
	return m, nil
}
