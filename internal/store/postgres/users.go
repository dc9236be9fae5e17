package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, emailLower, passwordHash, displayName string) (store.User, error) {
	var u store.User
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO users (id, email_lower, password_hash, display_name, created_at)
			VALUES (gen_random_uuid(), $1, $2, $3, now())
			RETURNING id, email_lower, password_hash, display_name, created_at`,
			emailLower, passwordHash, displayName)
		return row.Scan(&u.ID, &u.EmailLower, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	})
	if isUniqueViolation(err) {
		return store.User{}, store.ErrConflict
	}
	if err != nil {
		return store.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, emailLower string) (store.User, error) {
	var u store.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email_lower, password_hash, display_name, created_at
		FROM users WHERE email_lower = $1`, emailLower)
	if err := row.Scan(&u.ID, &u.EmailLower, &u.PasswordHash, &u.DisplayName, &u.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return store.User{}, store.ErrNotFound
		}
		return store.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	var u store.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email_lower, password_hash, display_name, created_at
		FROM users WHERE id = $1`, id)
	if err := row.Scan(&u.ID, &u.EmailLower, &u.PasswordHash, &u.DisplayName, &u.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return store.User{}, store.ErrNotFound
		}
		return store.User{}, err
	}
	return u, nil
}

// EnsurePersonalOrganization finds or creates a single-owner org for userID,
// spec §4.4 step 5.
func (s *Store) EnsurePersonalOrganization(ctx context.Context, userID uuid.UUID, suggestedName string) (store.Organization, error) {
	var org store.Organization
	var settingsRaw []byte
	row := s.pool.QueryRow(ctx, `
		SELECT o.id, o.slug, o.name, o.settings, o.created_at
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id AND m.user_id = $1 AND m.role_key = 'owner'
		WHERE (SELECT count(*) FROM memberships m2 WHERE m2.organization_id = o.id) = 1
		LIMIT 1`, userID)
	err := row.Scan(&org.ID, &org.Slug, &org.Name, &settingsRaw, &org.CreatedAt)
	if err == nil {
		org.Settings, err = fromJSONB(settingsRaw)
		return org, err
	}
	if err != pgx.ErrNoRows {
		return store.Organization{}, err
	}

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		settings, _ := toJSONB(nil)
		row := tx.QueryRow(ctx, `
			INSERT INTO organizations (id, slug, name, settings, created_at)
			VALUES (gen_random_uuid(), gen_random_uuid()::text, $1, $2, now())
			RETURNING id, slug, name, created_at`, suggestedName, settings)
		if err := row.Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt); err != nil {
			return err
		}
		org.Settings = map[string]any{}
		_, err := tx.Exec(ctx, `
			INSERT INTO memberships (organization_id, user_id, role_key)
			VALUES ($1, $2, 'owner')`, org.ID, userID)
		return err
	})
	if err != nil {
		return store.Organization{}, err
	}
	return org, nil
}
