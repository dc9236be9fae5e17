// Package postgres is the durable store.Store implementation backed by
// Postgres via pgx, spec §9: "in-memory and durable implementations behind
// the same interface." Tenant isolation mirrors memstore's: every tenant-
// scoped query carries an explicit organization_id predicate drawn from
// TenantCtx, so a caller can never read or write a row outside its own
// organization regardless of the id supplied. Read-modify-write sequences
// that need an additional actor-level check (e.g. SetMemberRole's
// owner-only-grants-owner invariant) install app.user_id/app.org_id as
// session-local GUCs via withTenantTx so the check and the write happen
// inside one transaction.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Open creates a new PostgreSQL connection pool.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Msg("postgres connection pool created")

	return pool, nil
}
