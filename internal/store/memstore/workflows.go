package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/store"
)

func (s *Store) CreateWorkflow(ctx context.Context, tc store.TenantCtx, w store.Workflow) (store.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = uuid.New()
	w.OrganizationID = tc.OrganizationID
	if w.FamilyID == uuid.Nil {
		w.FamilyID = w.ID
	}
	w.CreatedAt = s.now()
	w.UpdatedAt = w.CreatedAt
	s.workflows[w.ID] = w
	return w, nil
}

func (s *Store) GetWorkflow(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok || w.OrganizationID != tc.OrganizationID {
		return store.Workflow{}, store.ErrNotFound
	}
	return w, nil
}

// ListWorkflows paginates by {createdAt, id} descending, spec §6.
func (s *Store) ListWorkflows(ctx context.Context, tc store.TenantCtx, cursor store.Cursor, limit int) ([]store.Workflow, store.Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matching := make([]store.Workflow, 0)
	for _, w := range s.workflows {
		if w.OrganizationID == tc.OrganizationID {
			matching = append(matching, w)
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
		for i, w := range matching {
			if w.CreatedAt.Before(cursor.CreatedAt) || (w.CreatedAt.Equal(cursor.CreatedAt) && w.ID.String() < cursor.ID.String()) {
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

func (s *Store) UpdateDraftWorkflow(ctx context.Context, tc store.TenantCtx, id uuid.UUID, dsl, editorState map[string]any) (store.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok || w.OrganizationID != tc.OrganizationID {
		return store.Workflow{}, store.ErrNotFound
	}
	if w.Status != store.WorkflowDraft {
		return store.Workflow{}, store.ErrPreconditionFailed
	}
	w.DSL = dsl
	w.EditorState = editorState
	w.UpdatedAt = s.now()
	s.workflows[id] = w
	return w, nil
}

// PublishWorkflow flips status draft -> published and freezes the DSL, spec
// §3: a published workflow's DSL is immutable thereafter.
func (s *Store) PublishWorkflow(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok || w.OrganizationID != tc.OrganizationID {
		return store.Workflow{}, store.ErrNotFound
	}
	if w.Status != store.WorkflowDraft {
		return store.Workflow{}, store.ErrPreconditionFailed
	}
	now := s.now()
	w.Status = store.WorkflowPublished
	w.PublishedAt = &now
	w.UpdatedAt = now
	s.workflows[id] = w
	return w, nil
}

func (s *Store) ListRevisions(ctx context.Context, tc store.TenantCtx, familyID uuid.UUID) ([]store.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Workflow, 0)
	for _, w := range s.workflows {
		if w.OrganizationID == tc.OrganizationID && w.FamilyID == familyID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revision < out[j].Revision })
	return out, nil
}

// CreateDraftRevision forks a new draft from a published workflow, spec §4.5
// step: "editing a published workflow creates a new draft revision in the
// same family."
func (s *Store) CreateDraftRevision(ctx context.Context, tc store.TenantCtx, sourceWorkflowID uuid.UUID) (store.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.workflows[sourceWorkflowID]
	if !ok || src.OrganizationID != tc.OrganizationID {
		return store.Workflow{}, store.ErrNotFound
	}
	maxRevision := src.Revision
	for _, w := range s.workflows {
		if w.FamilyID == src.FamilyID && w.Revision > maxRevision {
			maxRevision = w.Revision
		}
	}
	now := s.now()
	draft := store.Workflow{
		ID:               uuid.New(),
		OrganizationID:   tc.OrganizationID,
		FamilyID:         src.FamilyID,
		Revision:         maxRevision + 1,
		SourceWorkflowID: &sourceWorkflowID,
		Name:             src.Name,
		Status:           store.WorkflowDraft,
		Version:          1,
		DSL:              src.DSL,
		EditorState:      src.EditorState,
		CreatedBy:        tc.ActorUserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.workflows[draft.ID] = draft
	return draft, nil
}
