package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
)

type createWorkflowRequest struct {
	Name        string         `json:"name"`
	DSL         map[string]any `json:"dsl"`
	EditorState map[string]any `json:"editorState"`
}

// handleCreateWorkflow implements `POST /v1/orgs/:orgId/workflows`: a new
// workflow starts life as a draft with its own family.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleMember)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, apperr.ErrValidation("name is required"))
		return
	}

	familyID := uuid.New()
	created, err := s.Store.CreateWorkflow(r.Context(), tc, store.Workflow{
		ID:             familyID,
		OrganizationID: tc.OrganizationID,
		FamilyID:       familyID,
		Revision:       1,
		Name:           req.Name,
		Status:         store.WorkflowDraft,
		Version:        1,
		DSL:            req.DSL,
		EditorState:    req.EditorState,
		CreatedBy:      auth.UserID,
	})
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListWorkflows implements `GET /v1/orgs/:orgId/workflows`.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cursor, err := decodeCursor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := decodeLimit(r)
	rows, next, hasMore, err := s.Store.ListWorkflows(r.Context(), tc, cursor, limit)
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(rows, next, hasMore))
}

func parseWorkflowID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "workflowId"))
	if err != nil {
		return uuid.Nil, apperr.ErrValidation("malformed workflowId")
	}
	return id, nil
}

// handleGetWorkflow implements `GET /v1/orgs/:orgId/workflows/:workflowId`.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseWorkflowID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	workflow, err := s.Store.GetWorkflow(r.Context(), tc, id)
	if err != nil {
		writeError(w, r, apperr.ErrNotFound("workflow not found"))
		return
	}
	writeJSON(w, http.StatusOK, workflow)
}

type updateDraftWorkflowRequest struct {
	DSL         map[string]any `json:"dsl"`
	EditorState map[string]any `json:"editorState"`
}

// handleUpdateDraftWorkflow implements
// `PUT /v1/orgs/:orgId/workflows/:workflowId/draft`.
func (s *Server) handleUpdateDraftWorkflow(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleMember)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseWorkflowID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateDraftWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.Store.UpdateDraftWorkflow(r.Context(), tc, id, req.DSL, req.EditorState)
	if err != nil {
		writeError(w, r, apperr.ErrConflict("workflow is not a draft"))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handlePublishWorkflow implements
// `POST /v1/orgs/:orgId/workflows/:workflowId/publish`.
func (s *Server) handlePublishWorkflow(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleAdmin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseWorkflowID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	published, err := s.Store.PublishWorkflow(r.Context(), tc, id)
	if err != nil {
		writeError(w, r, apperr.ErrConflict("workflow could not be published"))
		return
	}
	writeJSON(w, http.StatusOK, published)
}

// handleListRevisions implements
// `GET /v1/orgs/:orgId/workflows/:workflowId/revisions`. The path id names
// any member of the family; the store resolves it to the familyId.
func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseWorkflowID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	revisions, err := s.Store.ListRevisions(r.Context(), tc, id)
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
}

// handleCreateDraftRevision implements
// `POST /v1/orgs/:orgId/workflows/:workflowId/revisions`: branch a new
// draft off a published (or draft) workflow.
func (s *Server) handleCreateDraftRevision(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleMember)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseWorkflowID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	revision, err := s.Store.CreateDraftRevision(r.Context(), tc, id)
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusCreated, revision)
}

type createWorkflowRunRequest struct {
	Input map[string]any `json:"input"`
}

// handleCreateWorkflowRun implements
// `POST /v1/orgs/:orgId/workflows/:workflowId/runs`.
func (s *Server) handleCreateWorkflowRun(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleMember)
	if err != nil {
		writeError(w, r, err)
		return
	}
	workflowID, err := parseWorkflowID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createWorkflowRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := s.WorkflowRun.Create(r.Context(), tc, workflowID, auth.UserID, req.Input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// handleListWorkflowRuns implements
// `GET /v1/orgs/:orgId/workflows/:workflowId/runs`.
func (s *Server) handleListWorkflowRuns(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	workflowID, err := parseWorkflowID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cursor, err := decodeCursor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := decodeLimit(r)
	runs, next, hasMore, err := s.WorkflowRun.List(r.Context(), tc, workflowID, cursor, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(runs, next, hasMore))
}

// handleGetWorkflowRun implements
// `GET /v1/orgs/:orgId/workflows/:workflowId/runs/:runId`.
func (s *Server) handleGetWorkflowRun(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, tc, err := s.resolveOrg(w, r, auth.UserID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	runID, err := uuid.Parse(chi.URLParam(r, "runId"))
	if err != nil {
		writeError(w, r, apperr.ErrValidation("malformed runId"))
		return
	}
	run, err := s.WorkflowRun.Get(r.Context(), tc, runID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
