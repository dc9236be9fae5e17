package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/sessionrouter"
	"github.com/vespid-ai/control-plane/internal/store"
)

type createSessionRequest struct {
	Scope            string              `json:"scope"`
	Match            matchRequestPayload `json:"match"`
	EngineID         string              `json:"engineId"`
	ToolsetID        *uuid.UUID          `json:"toolsetId"`
	LLM              *store.LLMConfig    `json:"llm"`
	Prompt           store.PromptConfig  `json:"prompt"`
	ToolsAllow       []string            `json:"toolsAllow"`
	Limits           map[string]any      `json:"limits"`
	ExecutorSelector map[string]any      `json:"executorSelector"`
}

type matchRequestPayload struct {
	Peer    string `json:"peer"`
	Team    string `json:"team"`
	Account string `json:"account"`
	Channel string `json:"channel"`
}

// handleCreateSession implements `POST /v1/orgs/:orgId/sessions`.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	auth, err := requireAuth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resolved, tc, err := s.resolveOrg(w, r, auth.UserID, store.RoleMember)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Scope == "" || req.EngineID == "" {
		writeError(w, r, apperr.ErrValidation("scope and engineId are required"))
		return
	}

	session, err := s.SessionRouter.Create(r.Context(), tc, resolved.Membership, sessionrouter.CreateRequest{
		Scope: req.Scope,
		Match: sessionrouter.MatchRequest{
			Peer:    req.Match.Peer,
			Team:    req.Match.Team,
			Account: req.Match.Account,
			Channel: req.Match.Channel,
		},
		EngineID:         req.EngineID,
		ToolsetID:        req.ToolsetID,
		RequestedLLM:     req.LLM,
		Prompt:           req.Prompt,
		ToolsAllow:       req.ToolsAllow,
		Limits:           req.Limits,
		ExecutorSelector: req.ExecutorSelector,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func parseSessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		return uuid.Nil, apperr.ErrValidation("malformed sessionId")
	}
	return id, nil
}

// handleGetSession implements `GET /v1/orgs/:orgId/sessions/:sessionId`.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
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
	id, err := parseSessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.Store.GetAgentSession(r.Context(), tc, id)
	if err != nil {
		writeError(w, r, apperr.ErrAgentNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type appendMessageRequest struct {
	IdempotencyKey string         `json:"idempotencyKey"`
	Payload        map[string]any `json:"payload"`
}

// handleAppendSessionMessage implements
// `POST /v1/orgs/:orgId/sessions/:sessionId/messages`.
func (s *Server) handleAppendSessionMessage(w http.ResponseWriter, r *http.Request) {
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
	sessionID, err := parseSessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req appendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IdempotencyKey == "" {
		writeError(w, r, apperr.ErrValidation("idempotencyKey is required"))
		return
	}
	event, err := s.SessionRouter.AppendMessage(r.Context(), tc, sessionID, req.IdempotencyKey, req.Payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// handleResetSession implements
// `POST /v1/orgs/:orgId/sessions/:sessionId/reset`.
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
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
	sessionID, err := parseSessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	event, err := s.SessionRouter.Reset(r.Context(), tc, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleListSessionEvents implements
// `GET /v1/orgs/:orgId/sessions/:sessionId/events?afterSeq=&limit=`: the
// session-event cursor is a bare integer seq, ascending, not the opaque
// {createdAt,id} cursor the other list routes use.
func (s *Server) handleListSessionEvents(w http.ResponseWriter, r *http.Request) {
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
	sessionID, err := parseSessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	afterSeq := -1
	if raw := r.URL.Query().Get("afterSeq"); raw != "" {
		if parsed, ok := parsePositiveInt(raw); ok {
			afterSeq = parsed
		} else {
			writeError(w, r, apperr.ErrValidation("afterSeq must be a non-negative integer"))
			return
		}
	}
	limit := decodeLimit(r)
	events, err := s.Store.ListSessionEvents(r.Context(), tc, sessionID, afterSeq, limit)
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleListAgentBindings implements `GET /v1/orgs/:orgId/bindings`.
func (s *Server) handleListAgentBindings(w http.ResponseWriter, r *http.Request) {
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
	bindings, err := s.Store.ListAgentBindings(r.Context(), tc)
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bindings": bindings})
}

type createAgentBindingRequest struct {
	AgentID   uuid.UUID             `json:"agentId"`
	Priority  int                   `json:"priority"`
	Dimension store.BindingDimension `json:"dimension"`
	Match     map[string]any        `json:"match"`
	Metadata  map[string]any        `json:"metadata"`
}

// handleCreateAgentBinding implements `POST /v1/orgs/:orgId/bindings`.
func (s *Server) handleCreateAgentBinding(w http.ResponseWriter, r *http.Request) {
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
	var req createAgentBindingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.AgentID == uuid.Nil || req.Dimension == "" {
		writeError(w, r, apperr.ErrValidation("agentId and dimension are required"))
		return
	}
	created, err := s.Store.CreateAgentBinding(r.Context(), tc, store.AgentBinding{
		ID:             uuid.New(),
		OrganizationID: tc.OrganizationID,
		AgentID:        req.AgentID,
		Priority:       req.Priority,
		Dimension:      req.Dimension,
		Match:          req.Match,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(w, r, apperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// parsePositiveInt parses a non-negative base-10 integer without pulling in
// strconv's full surface for this single call site.
func parsePositiveInt(raw string) (int, bool) {
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
