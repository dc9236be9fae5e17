// Package sessionrouter implements the session router, spec §4.6:
// dimensioned binding resolution, deterministic sessionKey derivation,
// idempotent message append, and gateway forwarding. Grounded on the
// teacher's TenantAuthCache-adjacent store usage pattern and on
// internal/orgctx's role-gate style for the ORG_DEFAULT_LLM_REQUIRED
// decision recorded in DESIGN.md.
package sessionrouter

import (
	"context"

	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/gateway"
	"github.com/vespid-ai/control-plane/internal/store"

	"github.com/google/uuid"
)

// Coordinator implements spec §4.6.
type Coordinator struct {
	Store   store.Store
	Gateway *gateway.Client
}

func New(st store.Store, gw *gateway.Client) *Coordinator {
	return &Coordinator{Store: st, Gateway: gw}
}

// CreateRequest carries everything a new-session request needs, spec §3's
// AgentSession shape plus the routing-match fields spec §4.6 step 2 reads.
type CreateRequest struct {
	Scope            string
	Match            MatchRequest
	EngineID         string
	ToolsetID        *uuid.UUID
	RequestedLLM     *store.LLMConfig
	Prompt           store.PromptConfig
	ToolsAllow       []string
	Limits           map[string]any
	ExecutorSelector map[string]any
}

// Create implements spec §4.6's full per-session-creation procedure:
// resolve the binding, derive sessionKey, dedupe against an existing
// session with the same key, resolve the LLM per the member/org-default
// rule, and persist the row.
func (c *Coordinator) Create(ctx context.Context, tc store.TenantCtx, membership store.Membership, req CreateRequest) (store.AgentSession, error) {
	binding, ok, err := Resolve(ctx, c.Store, tc, req.Match, membership.RoleKey)
	if err != nil {
		return store.AgentSession{}, apperr.ErrInternal
	}

	var routedAgentID *uuid.UUID
	var bindingID *uuid.UUID
	if ok {
		agentID := binding.AgentID
		bindingID = &binding.ID
		routedAgentID = &agentID
	}

	routedAgentStr := ""
	if routedAgentID != nil {
		routedAgentStr = routedAgentID.String()
	}
	sessionKey := DeriveSessionKey(KeyRequest{
		RoutedAgentID:  routedAgentStr,
		OrganizationID: tc.OrganizationID.String(),
		Scope:          req.Scope,
		Peer:           req.Match.Peer,
		ActorUserID:    tc.ActorUserID.String(),
		ChannelID:      req.Match.Channel,
		AccountID:      req.Match.Account,
	})

	if existing, found, err := c.Store.GetAgentSessionByKey(ctx, tc, sessionKey); err != nil {
		return store.AgentSession{}, apperr.ErrInternal
	} else if found {
		return existing, nil
	}

	llm, err := c.resolveLLM(ctx, tc, membership.RoleKey, req.RequestedLLM)
	if err != nil {
		return store.AgentSession{}, err
	}

	session, err := c.Store.CreateAgentSession(ctx, tc, store.AgentSession{
		ID:               uuid.New(),
		OrganizationID:   tc.OrganizationID,
		SessionKey:       sessionKey,
		Scope:            req.Scope,
		RoutedAgentID:    routedAgentID,
		BindingID:        bindingID,
		EngineID:         req.EngineID,
		ToolsetID:        req.ToolsetID,
		LLM:              llm,
		Prompt:           req.Prompt,
		ToolsAllow:       req.ToolsAllow,
		Limits:           req.Limits,
		ExecutorSelector: req.ExecutorSelector,
		Status:           store.AgentSessionActive,
	})
	if err != nil {
		return store.AgentSession{}, apperr.ErrInternal
	}
	return session, nil
}

// resolveLLM implements the §9 open-question decision recorded in
// DESIGN.md: a member must use the org's default LLM; a non-default
// request from a member fails ORG_DEFAULT_LLM_REQUIRED, and no default
// existing at all fails the same way for every role.
func (c *Coordinator) resolveLLM(ctx context.Context, tc store.TenantCtx, role store.RoleKey, requested *store.LLMConfig) (store.LLMConfig, error) {
	settings, err := c.Store.GetOrgSettings(ctx, tc)
	if err != nil {
		return store.LLMConfig{}, apperr.ErrInternal
	}
	def, hasDefault := parseDefaultLLM(settings)

	if requested == nil {
		if !hasDefault {
			return store.LLMConfig{}, apperr.ErrOrgDefaultLLMRequired
		}
		return def, nil
	}

	if role == store.RoleMember {
		if !hasDefault || requested.Provider != def.Provider || requested.Model != def.Model {
			return store.LLMConfig{}, apperr.ErrOrgDefaultLLMRequired
		}
	}
	return *requested, nil
}

func parseDefaultLLM(settings map[string]any) (store.LLMConfig, bool) {
	raw, ok := settings["defaultLlm"]
	if !ok {
		return store.LLMConfig{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return store.LLMConfig{}, false
	}
	provider, _ := m["provider"].(string)
	model, _ := m["model"].(string)
	if provider == "" || model == "" {
		return store.LLMConfig{}, false
	}
	cfg := store.LLMConfig{Provider: provider, Model: model}
	if secretIDStr, ok := m["secretId"].(string); ok && secretIDStr != "" {
		if id, err := uuid.Parse(secretIDStr); err == nil {
			cfg.SecretID = &id
		}
	}
	return cfg, true
}

// AppendMessage implements spec §4.6's messaging algorithm: append a
// user_message event idempotently, then forward it to the gateway with the
// event's seq. The event row always survives a gateway failure, giving
// at-least-once delivery from the client's perspective.
func (c *Coordinator) AppendMessage(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, idempotencyKey string, payload map[string]any) (store.AgentSessionEvent, error) {
	event, _, err := c.Store.AppendSessionEvent(ctx, tc, sessionID, "user_message", store.EventLevelInfo, idempotencyKey, payload)
	if err != nil {
		return store.AgentSessionEvent{}, apperr.ErrInternal
	}
	if err := c.Store.TouchAgentSessionActivity(ctx, tc, sessionID); err != nil {
		return store.AgentSessionEvent{}, apperr.ErrInternal
	}

	if err := c.Gateway.ForwardMessage(ctx, sessionID, event.Seq, event.EventType, payload); err != nil {
		// Spec §4.6: gateway failure surfaces 503 QUEUE_UNAVAILABLE, not a
		// distinct gateway code; the user event row already persisted above.
		return store.AgentSessionEvent{}, apperr.ErrQueueUnavailable
	}
	return event, nil
}

// Reset implements spec §4.6's session reset: clears the pinned agent (and
// its implied executor pinning) and appends a system event.
func (c *Coordinator) Reset(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID) (store.AgentSessionEvent, error) {
	if err := c.Store.UpdateAgentSessionPinning(ctx, tc, sessionID, nil); err != nil {
		return store.AgentSessionEvent{}, apperr.ErrInternal
	}
	event, _, err := c.Store.AppendSessionEvent(ctx, tc, sessionID, "system", store.EventLevelInfo, "", map[string]any{
		"message": "session reset",
	})
	if err != nil {
		return store.AgentSessionEvent{}, apperr.ErrInternal
	}
	return event, nil
}
