package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/vespid-ai/control-plane/internal/store"
)

func scanBinding(row pgx.Row) (store.AgentBinding, error) {
	var b store.AgentBinding
	var matchRaw, metaRaw []byte
	err := row.Scan(&b.ID, &b.OrganizationID, &b.AgentID, &b.Priority, &b.Dimension, &matchRaw, &metaRaw)
	if err != nil {
		return store.AgentBinding{}, err
	}
	if b.Match, err = fromJSONB(matchRaw); err != nil {
		return store.AgentBinding{}, err
	}
	if b.Metadata, err = fromJSONB(metaRaw); err != nil {
		return store.AgentBinding{}, err
	}
	return b, nil
}

func (s *Store) ListAgentBindings(ctx context.Context, tc store.TenantCtx) ([]store.AgentBinding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, agent_id, priority, dimension, match, metadata
		FROM agent_bindings WHERE organization_id = $1`, tc.OrganizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]store.AgentBinding, 0)
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CreateAgentBinding(ctx context.Context, tc store.TenantCtx, b store.AgentBinding) (store.AgentBinding, error) {
	matchRaw, err := toJSONB(b.Match)
	if err != nil {
		return store.AgentBinding{}, err
	}
	metaRaw, err := toJSONB(b.Metadata)
	if err != nil {
		return store.AgentBinding{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agent_bindings (id, organization_id, agent_id, priority, dimension, match, metadata)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, organization_id, agent_id, priority, dimension, match, metadata`,
		tc.OrganizationID, b.AgentID, b.Priority, b.Dimension, matchRaw, metaRaw)
	return scanBinding(row)
}
