package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) GetCredits(ctx context.Context, tc store.TenantCtx) (store.OrganizationCredits, error) {
	var c store.OrganizationCredits
	row := s.pool.QueryRow(ctx, `
		SELECT organization_id, balance_credits, updated_at FROM organization_credits WHERE organization_id = $1`, tc.OrganizationID)
	if err := row.Scan(&c.OrganizationID, &c.BalanceCredits, &c.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return store.OrganizationCredits{OrganizationID: tc.OrganizationID}, nil
		}
		return store.OrganizationCredits{}, err
	}
	return c, nil
}

func scanLedgerEntry(row pgx.Row) (store.LedgerEntry, error) {
	var e store.LedgerEntry
	var metaRaw []byte
	err := row.Scan(&e.ID, &e.OrganizationID, &e.DeltaCredits, &e.Reason, &e.StripeEventID, &e.WorkflowRunID, &e.CreatedBy, &metaRaw, &e.CreatedAt)
	if err != nil {
		return store.LedgerEntry{}, err
	}
	if e.Metadata, err = fromJSONB(metaRaw); err != nil {
		return store.LedgerEntry{}, err
	}
	return e, nil
}

const ledgerColumns = `id, organization_id, delta_credits, reason, stripe_event_id, workflow_run_id, created_by, metadata, created_at`

func (s *Store) ListLedger(ctx context.Context, tc store.TenantCtx, cursor store.Cursor, limit int) ([]store.LedgerEntry, store.Cursor, bool, error) {
	where, cursorArgs := cursorWhere(cursor, 3)
	query := `SELECT ` + ledgerColumns + ` FROM credit_ledger WHERE organization_id = $2`
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

	out := make([]store.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, store.Cursor{}, false, err
		}
		out = append(out, e)
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

// ApplyCredit is at-most-once per stripeEventID (spec §4.9, §8): a unique
// index on credit_ledger(stripe_event_id) where not null turns a replayed
// webhook delivery into a no-op insert conflict, which this method detects
// and reports as applied=false.
func (s *Store) ApplyCredit(ctx context.Context, organizationID uuid.UUID, delta int64, reason string, stripeEventID *string, workflowRunID *uuid.UUID, createdBy *uuid.UUID, metadata map[string]any) (bool, store.LedgerEntry, error) {
	var entry store.LedgerEntry
	applied := false
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if stripeEventID != nil {
			existing, err := scanLedgerEntry(tx.QueryRow(ctx, `
				SELECT `+ledgerColumns+` FROM credit_ledger WHERE organization_id = $1 AND stripe_event_id = $2`,
				organizationID, *stripeEventID))
			if err == nil {
				entry = existing
				return nil
			}
			if err != pgx.ErrNoRows {
				return err
			}
		}

		metaRaw, err := toJSONB(metadata)
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO credit_ledger (id, organization_id, delta_credits, reason, stripe_event_id, workflow_run_id, created_by, metadata, created_at)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, now())
			RETURNING `+ledgerColumns,
			organizationID, delta, reason, stripeEventID, workflowRunID, createdBy, metaRaw)
		entry, err = scanLedgerEntry(row)
		if err != nil {
			return err
		}
		applied = true

		_, err = tx.Exec(ctx, `
			INSERT INTO organization_credits (organization_id, balance_credits, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (organization_id) DO UPDATE SET
				balance_credits = organization_credits.balance_credits + $2,
				updated_at = now()`, organizationID, delta)
		return err
	})
	if isUniqueViolation(err) {
		existing, getErr := scanLedgerEntry(s.pool.QueryRow(ctx, `
			SELECT `+ledgerColumns+` FROM credit_ledger WHERE organization_id = $1 AND stripe_event_id = $2`,
			organizationID, stripeEventID))
		if getErr != nil {
			return false, store.LedgerEntry{}, getErr
		}
		return false, existing, nil
	}
	if err != nil {
		return false, store.LedgerEntry{}, err
	}
	return applied, entry, nil
}
