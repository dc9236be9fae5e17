// Package toolsetbuilder implements the toolset-builder engine's
// ACTIVE→FINALIZED state machine, spec §4.8. Grounded on §4.8's algorithm
// directly; the catalog/provider-dispatch split mirrors
// internal/secretvault's injected-Catalog pattern since both fill the same
// spec §1 "static connector/channel catalogs" gap.
package toolsetbuilder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/llm"
	"github.com/vespid-ai/control-plane/internal/secretvault"
	"github.com/vespid-ai/control-plane/internal/store"
)

const toolsetBuilderContext = "toolsetBuilder"
const maxChatHistoryTurns = 12

// Coordinator implements spec §4.8's state machine operations.
type Coordinator struct {
	Store   store.Store
	Catalog Catalog
	Vault   *secretvault.Vault
	LLM     *llm.Dispatcher
}

func New(st store.Store, catalog Catalog, vault *secretvault.Vault, dispatcher *llm.Dispatcher) *Coordinator {
	return &Coordinator{Store: st, Catalog: catalog, Vault: vault, LLM: dispatcher}
}

// resolveClient implements createSession's "validates LLM config (provider
// must support toolsetBuilder context; if provider requires OAuth,
// auth.secretId must be present and belong to the expected LLM
// connector)" and builds the llm.Client the rest of the state machine
// calls.
func (c *Coordinator) resolveClient(ctx context.Context, tc store.TenantCtx, cfg store.LLMConfig) (llm.Client, error) {
	if !c.Catalog.ProviderSupportsContext(cfg.Provider, toolsetBuilderContext) {
		return nil, apperr.ErrValidation(fmt.Sprintf("provider %q does not support the toolsetBuilder context", cfg.Provider))
	}

	apiKey := ""
	if c.Catalog.ProviderRequiresOAuth(cfg.Provider) {
		if cfg.SecretID == nil {
			return nil, apperr.ErrLLMSecretRequired
		}
		secret, err := c.Store.GetConnectorSecret(ctx, tc, *cfg.SecretID)
		if err != nil {
			return nil, apperr.ErrLLMSecretRequired
		}
		expected := c.Catalog.ProviderConnectorID(cfg.Provider)
		if secret.ConnectorID != expected {
			return nil, apperr.ErrValidation("secret does not belong to the expected LLM connector")
		}
		plaintext, err := c.Vault.Reveal(ctx, tc, *cfg.SecretID)
		if err != nil {
			return nil, apperr.ErrLLMSecretRequired
		}
		apiKey = plaintext
	} else if cfg.SecretID != nil {
		plaintext, err := c.Vault.Reveal(ctx, tc, *cfg.SecretID)
		if err != nil {
			return nil, apperr.ErrLLMSecretRequired
		}
		apiKey = plaintext
	}

	client, err := c.LLM.Client(llm.Config{APIKind: cfg.Provider, Model: cfg.Model, APIKey: apiKey})
	if err != nil {
		return nil, apperr.ErrLLMUnavailable
	}
	return client, nil
}

// CreateSession implements spec §4.8's createSession operation.
func (c *Coordinator) CreateSession(ctx context.Context, tc store.TenantCtx, createdBy uuid.UUID, llmCfg store.LLMConfig, intent string) (store.ToolsetBuilderSession, []string, error) {
	client, err := c.resolveClient(ctx, tc, llmCfg)
	if err != nil {
		return store.ToolsetBuilderSession{}, nil, err
	}

	session, err := c.Store.CreateToolsetBuilderSession(ctx, tc, store.ToolsetBuilderSession{
		ID:             uuid.New(),
		OrganizationID: tc.OrganizationID,
		CreatedBy:      createdBy,
		Status:         store.BuilderActive,
		LLM:            llmCfg,
	})
	if err != nil {
		return store.ToolsetBuilderSession{}, nil, apperr.ErrInternal
	}

	suggested := keysOf(Rank(intent, c.Catalog.Components(), defaultLimit))

	if intent != "" {
		if _, err := c.Store.AppendToolsetBuilderTurn(ctx, tc, session.ID, store.TurnUser, intent); err != nil {
			return store.ToolsetBuilderSession{}, nil, apperr.ErrInternal
		}
		resp, err := client.Complete(ctx, llm.Request{
			System:   "You are helping a user assemble a toolset from MCP servers and agent skills.",
			Messages: []llm.Message{{Role: "user", Text: intent}},
		})
		if err != nil {
			return store.ToolsetBuilderSession{}, nil, apperr.ErrLLMUnavailable
		}
		if _, err := c.Store.AppendToolsetBuilderTurn(ctx, tc, session.ID, store.TurnAssistant, resp.Text); err != nil {
			return store.ToolsetBuilderSession{}, nil, apperr.ErrInternal
		}
	} else {
		canned := "Tell me what you'd like your agent to be able to do, and I'll suggest tools."
		if _, err := c.Store.AppendToolsetBuilderTurn(ctx, tc, session.ID, store.TurnAssistant, canned); err != nil {
			return store.ToolsetBuilderSession{}, nil, apperr.ErrInternal
		}
	}

	if err := c.Store.UpdateToolsetBuilderSelection(ctx, tc, session.ID, intent, suggested); err != nil {
		return store.ToolsetBuilderSession{}, nil, apperr.ErrInternal
	}
	session.LatestIntent = intent
	session.SelectedComponentKeys = suggested
	return session, suggested, nil
}

// Chat implements spec §4.8's chat operation.
func (c *Coordinator) Chat(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID, message string, callerSelection []string) (store.ToolsetBuilderTurn, []string, error) {
	session, err := c.Store.GetToolsetBuilderSession(ctx, tc, sessionID)
	if err != nil {
		return store.ToolsetBuilderTurn{}, nil, apperr.ErrToolsetBuilderSessionNotFound
	}
	if session.Status != store.BuilderActive {
		return store.ToolsetBuilderTurn{}, nil, apperr.ErrToolsetBuilderSessionFinalized
	}

	client, err := c.resolveClient(ctx, tc, session.LLM)
	if err != nil {
		return store.ToolsetBuilderTurn{}, nil, err
	}

	redacted := redactSecrets(message)
	if _, err := c.Store.AppendToolsetBuilderTurn(ctx, tc, sessionID, store.TurnUser, redacted); err != nil {
		return store.ToolsetBuilderTurn{}, nil, apperr.ErrInternal
	}

	history, err := c.Store.ListToolsetBuilderTurns(ctx, tc, sessionID, maxChatHistoryTurns)
	if err != nil {
		return store.ToolsetBuilderTurn{}, nil, apperr.ErrInternal
	}
	messages := make([]llm.Message, 0, len(history))
	for _, t := range history {
		role := "user"
		if t.Role == store.TurnAssistant {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Text: t.MessageText})
	}

	resp, err := client.Complete(ctx, llm.Request{
		System:   "You are helping a user assemble a toolset from MCP servers and agent skills.",
		Messages: messages,
	})
	if err != nil {
		return store.ToolsetBuilderTurn{}, nil, apperr.ErrLLMUnavailable
	}
	assistantTurn, err := c.Store.AppendToolsetBuilderTurn(ctx, tc, sessionID, store.TurnAssistant, resp.Text)
	if err != nil {
		return store.ToolsetBuilderTurn{}, nil, apperr.ErrInternal
	}

	suggested := keysOf(Rank(redacted, c.Catalog.Components(), defaultLimit))
	merged := unionKeys(session.SelectedComponentKeys, suggested, callerSelection)
	if err := c.Store.UpdateToolsetBuilderSelection(ctx, tc, sessionID, redacted, merged); err != nil {
		return store.ToolsetBuilderTurn{}, nil, apperr.ErrInternal
	}

	return assistantTurn, merged, nil
}

// Finalize implements spec §4.8's finalize operation: ACTIVE → FINALIZED,
// a final LLM call that produces a one-sentence summary appended as an
// assistant turn, and draft validation.
// MCP servers and agent skills are both resolved from the catalog by the
// session's selected keys — never invented by the LLM call.
func (c *Coordinator) Finalize(ctx context.Context, tc store.TenantCtx, sessionID uuid.UUID) (store.ToolsetBuilderSession, error) {
	session, err := c.Store.GetToolsetBuilderSession(ctx, tc, sessionID)
	if err != nil {
		return store.ToolsetBuilderSession{}, apperr.ErrToolsetBuilderSessionNotFound
	}
	if session.Status != store.BuilderActive {
		return store.ToolsetBuilderSession{}, apperr.ErrToolsetBuilderSessionFinalized
	}

	client, err := c.resolveClient(ctx, tc, session.LLM)
	if err != nil {
		return store.ToolsetBuilderSession{}, err
	}

	var mcpServers []store.MCPServerSpec
	var agentSkills []store.AgentSkillSpec
	for _, key := range session.SelectedComponentKeys {
		if spec, ok := c.Catalog.MCPServer(key); ok {
			mcpServers = append(mcpServers, spec)
			continue
		}
		if spec, ok := c.Catalog.AgentSkill(key); ok {
			agentSkills = append(agentSkills, spec)
		}
	}

	resp, err := client.Complete(ctx, llm.Request{
		System:   "Summarize the final toolset selection for the user in one sentence.",
		Messages: []llm.Message{{Role: "user", Text: session.LatestIntent}},
	})
	if err != nil {
		return store.ToolsetBuilderSession{}, apperr.ErrLLMUnavailable
	}
	if _, err := c.Store.AppendToolsetBuilderTurn(ctx, tc, sessionID, store.TurnAssistant, resp.Text); err != nil {
		return store.ToolsetBuilderSession{}, apperr.ErrInternal
	}

	draft := store.ToolsetDraft{MCPServers: mcpServers, AgentSkills: agentSkills}
	if err := ValidateDraft(draft); err != nil {
		return store.ToolsetBuilderSession{}, err
	}

	finalized, err := c.Store.FinalizeToolsetBuilderSession(ctx, tc, sessionID, draft)
	if err != nil {
		return store.ToolsetBuilderSession{}, apperr.ErrInternal
	}
	return finalized, nil
}

func keysOf(items []ComponentItem) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return keys
}

func unionKeys(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, k := range set {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
