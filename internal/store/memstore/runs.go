package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateWorkflowRun(ctx context.Context, tc store.TenantCtx, r store.WorkflowRun) (store.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.New()
	r.OrganizationID = tc.OrganizationID
	if r.Status == "" {
		r.Status = store.RunQueued
	}
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	s.runs[r.ID] = r
	return r, nil
}

// DeleteQueuedRun is the compensating rollback used when enqueue fails,
// spec §4.5 step 4: only a run that never left status=queued with
// attemptCount=0 may be deleted.
func (s *Store) DeleteQueuedRun(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok || r.OrganizationID != tc.OrganizationID {
		return store.ErrNotFound
	}
	if r.Status != store.RunQueued || r.AttemptCount != 0 {
		return store.ErrPreconditionFailed
	}
	delete(s.runs, id)
	return nil
}

func (s *Store) GetWorkflowRun(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok || r.OrganizationID != tc.OrganizationID {
		return store.WorkflowRun{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListWorkflowRuns(ctx context.Context, tc store.TenantCtx, workflowID uuid.UUID, cursor store.Cursor, limit int) ([]store.WorkflowRun, store.Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matching := make([]store.WorkflowRun, 0)
	for _, r := range s.runs {
		if r.OrganizationID == tc.OrganizationID && r.WorkflowID == workflowID {
			matching = append(matching, r)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID.String() > matching[j].ID.String()
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	start := 0
	if !cursor.CreatedAt.IsZero() {
		for i, r := range matching {
			if r.CreatedAt.Before(cursor.CreatedAt) || (r.CreatedAt.Equal(cursor.CreatedAt) && r.ID.String() < cursor.ID.String()) {
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

func (s *Store) TransitionRun(ctx context.Context, tc store.TenantCtx, id uuid.UUID, status store.WorkflowRunStatus, output map[string]any, errMsg string) (store.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok || r.OrganizationID != tc.OrganizationID {
		return store.WorkflowRun{}, store.ErrNotFound
	}
	if !validRunTransition(r.Status, status) {
		return store.WorkflowRun{}, store.ErrPreconditionFailed
	}
	r.Status = status
	if status == store.RunRunning {
		r.AttemptCount++
	}
	if output != nil {
		r.Output = output
	}
	if errMsg != "" {
		r.Error = errMsg
	}
	r.UpdatedAt = s.now()
	s.runs[id] = r
	return r, nil
}

func validRunTransition(from, to store.WorkflowRunStatus) bool {
	switch from {
	case store.RunQueued:
		return to == store.RunRunning || to == store.RunFailed
	case store.RunRunning:
		return to == store.RunSucceeded || to == store.RunFailed
	default:
		return false
	}
}
