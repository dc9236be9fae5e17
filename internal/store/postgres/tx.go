package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vespid-ai/control-plane/internal/store"
)

// Store is the durable, tenant-scoped store.Store implementation.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-opened pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

// withTenantTx opens a transaction, installs tc as two session-local GUCs,
// runs fn, and commits on success. Every RLS-guarded statement issued inside
// fn executes under that tenant context; a panic or error rolls back.
func (s *Store) withTenantTx(ctx context.Context, tc store.TenantCtx, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('app.user_id', $1, true), set_config('app.org_id', $2, true)`,
		tc.ActorUserID.String(), tc.OrganizationID.String()); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// withTx opens a plain transaction with no tenant context installed, used for
// unauthenticated flows (signup, login) that precede tenant resolution.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	return err != nil && (pgxErrCode(err) == "23505")
}
