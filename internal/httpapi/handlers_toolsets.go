package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
)

type createToolsetBuilderSessionRequest struct {
	LLM    store.LLMConfig `json:"llm"`
	Intent string          `json:"intent"`
}

// handleCreateToolsetBuilderSession implements
// `POST /v1/orgs/:orgId/toolset-builder/sessions`.
func (s *Server) handleCreateToolsetBuilderSession(w http.ResponseWriter, r *http.Request) {
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
	var req createToolsetBuilderSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, suggested, err := s.ToolsetBuilder.CreateSession(r.Context(), tc, auth.UserID, req.LLM, req.Intent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session":           session,
		"suggestedComponents": suggested,
	})
}

func parseBuilderSessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		return uuid.Nil, apperr.ErrValidation("malformed sessionId")
	}
	return id, nil
}

type toolsetBuilderChatRequest struct {
	Message         string   `json:"message"`
	SelectedKeys    []string `json:"selectedComponentKeys"`
}

// handleToolsetBuilderChat implements
// `POST /v1/orgs/:orgId/toolset-builder/sessions/:sessionId/chat`.
func (s *Server) handleToolsetBuilderChat(w http.ResponseWriter, r *http.Request) {
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
	sessionID, err := parseBuilderSessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req toolsetBuilderChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	turn, selected, err := s.ToolsetBuilder.Chat(r.Context(), tc, sessionID, req.Message, req.SelectedKeys)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"turn":                  turn,
		"selectedComponentKeys": selected,
	})
}

// handleFinalizeToolsetBuilderSession implements
// `POST /v1/orgs/:orgId/toolset-builder/sessions/:sessionId/finalize`.
func (s *Server) handleFinalizeToolsetBuilderSession(w http.ResponseWriter, r *http.Request) {
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
	sessionID, err := parseBuilderSessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	finalized, err := s.ToolsetBuilder.Finalize(r.Context(), tc, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finalized)
}

type createToolsetRequest struct {
	Name  string             `json:"name"`
	Draft store.ToolsetDraft `json:"draft"`
}

// handleCreateToolset implements `POST /v1/orgs/:orgId/toolsets`: a
// toolset can be created directly from a draft, or from a finalized
// builder session's draft (the caller copies it over).
func (s *Server) handleCreateToolset(w http.ResponseWriter, r *http.Request) {
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
	var req createToolsetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, apperr.ErrValidation("name is required"))
		return
	}
	created, err := s.Toolset.Create(r.Context(), tc, auth.UserID, req.Name, req.Draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func parseToolsetID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "toolsetId"))
	if err != nil {
		return uuid.Nil, apperr.ErrValidation("malformed toolsetId")
	}
	return id, nil
}

// handleGetToolset implements `GET /v1/orgs/:orgId/toolsets/:toolsetId`.
func (s *Server) handleGetToolset(w http.ResponseWriter, r *http.Request) {
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
	id, err := parseToolsetID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	toolset, err := s.Toolset.Get(r.Context(), tc, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toolset)
}

type publishToolsetRequest struct {
	Visibility store.ToolsetVisibility `json:"visibility"`
}

// handlePublishToolset implements
// `POST /v1/orgs/:orgId/toolsets/:toolsetId/publish`.
func (s *Server) handlePublishToolset(w http.ResponseWriter, r *http.Request) {
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
	id, err := parseToolsetID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req publishToolsetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	published, err := s.Toolset.Publish(r.Context(), tc, id, req.Visibility)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, published)
}

type unpublishToolsetRequest struct {
	RestoreVisibility store.ToolsetVisibility `json:"restoreVisibility"`
}

// handleUnpublishToolset implements
// `POST /v1/orgs/:orgId/toolsets/:toolsetId/unpublish`.
func (s *Server) handleUnpublishToolset(w http.ResponseWriter, r *http.Request) {
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
	id, err := parseToolsetID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req unpublishToolsetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	unpublished, err := s.Toolset.Unpublish(r.Context(), tc, id, req.RestoreVisibility)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unpublished)
}
