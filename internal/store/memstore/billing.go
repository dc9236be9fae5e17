package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) GetCredits(ctx context.Context, tc store.TenantCtx) (store.OrganizationCredits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credits[tc.OrganizationID]
	if !ok {
		return store.OrganizationCredits{OrganizationID: tc.OrganizationID, UpdatedAt: s.now()}, nil
	}
	return c, nil
}

func (s *Store) ListLedger(ctx context.Context, tc store.TenantCtx, cursor store.Cursor, limit int) ([]store.LedgerEntry, store.Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matching := append([]store.LedgerEntry(nil), s.ledger[tc.OrganizationID]...)
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID.String() > matching[j].ID.String()
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	start := 0
	if !cursor.CreatedAt.IsZero() {
		for i, e := range matching {
			if e.CreatedAt.Before(cursor.CreatedAt) || (e.CreatedAt.Equal(cursor.CreatedAt) && e.ID.String() < cursor.ID.String()) {
				start = i
				break
			}
			start = i + 1
		}
	}
	page := matching[start:]
	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	var next store.Cursor
	if len(page) > 0 {
		last := page[len(page)-1]
		next = store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return page, next, hasMore, nil
}

// ApplyCredit is at-most-once per stripeEventID (spec §4.9, §8): a replayed
// webhook delivery finds the event already recorded in ledgerByStripeID and
// returns applied=false without mutating the balance.
func (s *Store) ApplyCredit(ctx context.Context, organizationID uuid.UUID, delta int64, reason string, stripeEventID *string, workflowRunID *uuid.UUID, createdBy *uuid.UUID, metadata map[string]any) (bool, store.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stripeEventID != nil {
		if existingID, ok := s.ledgerByStripeID[*stripeEventID]; ok {
			for _, e := range s.ledger[organizationID] {
				if e.ID == existingID {
					return false, e, nil
				}
			}
		}
	}

	entry := store.LedgerEntry{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		DeltaCredits:   delta,
		Reason:         reason,
		StripeEventID:  stripeEventID,
		WorkflowRunID:  workflowRunID,
		CreatedBy:      createdBy,
		Metadata:       metadata,
		CreatedAt:      s.now(),
	}
	s.ledger[organizationID] = append(s.ledger[organizationID], entry)
	if stripeEventID != nil {
		s.ledgerByStripeID[*stripeEventID] = entry.ID
	}

	c := s.credits[organizationID]
	c.OrganizationID = organizationID
	c.BalanceCredits += delta
	c.UpdatedAt = entry.CreatedAt
	s.credits[organizationID] = c

	return true, entry, nil
}
