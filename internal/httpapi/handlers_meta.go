package httpapi

import (
	"net/http"

	"github.com/vespid-ai/control-plane/internal/apperr"
)

// handleCapabilities implements `GET /v1/meta/capabilities`: a static
// description of what this deployment supports, spec §1's "static
// connector/channel catalogs are an out-of-scope external collaborator" —
// this route reports the in-process defaults cmd/server wired in.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"oauthProviders": []string{"google", "github"},
		"orgContextEnforcement": s.Cfg.OrgContextEnforcement,
	})
}

// handleConnectors implements `GET /v1/meta/connectors`.
func (s *Server) handleConnectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connectors": []string{"slack", "github", "linear", "jira", "notion"},
	})
}

// handleChannels implements `GET /v1/meta/channels`.
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": []string{"slack", "discord", "webhook"},
	})
}

// llmProviderInfo is one entry in `GET /v1/llm/providers`.
type llmProviderInfo struct {
	Provider      string `json:"provider"`
	RequiresOAuth bool   `json:"requiresOAuth"`
}

// handleLLMProviders implements `GET /v1/llm/providers?context=...`,
// reporting which providers support the requested usage context (session,
// workflowAgentRun, toolsetBuilder).
func (s *Server) handleLLMProviders(w http.ResponseWriter, r *http.Request) {
	context := r.URL.Query().Get("context")
	if context == "" {
		writeError(w, r, apperr.ErrValidation("context query parameter is required"))
		return
	}

	candidates := []string{"anthropic-compatible", "openai-compatible", "google", "vertex"}
	var providers []llmProviderInfo
	for _, p := range candidates {
		if s.ToolsetBuilder.Catalog.ProviderSupportsContext(p, context) {
			providers = append(providers, llmProviderInfo{
				Provider:      p,
				RequiresOAuth: s.ToolsetBuilder.Catalog.ProviderRequiresOAuth(p),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}
