package toolsetbuilder

import "github.com/vespid-ai/control-plane/internal/store"

// ComponentItem is one MCP-server-or-agent-skill entry a builder session
// can select, spec §4.8's "catalog ranking" input.
type ComponentItem struct {
	Key         string
	Name        string
	Description string
}

// providerInfo is the LLM-connector-catalog half of Catalog: which
// contexts a provider supports and, if it requires OAuth, which connector
// id its secret must belong to.
type providerInfo struct {
	contexts      map[string]bool
	requiresOAuth bool
	connectorID   string
}

// Catalog is the injected "recognized component/provider universe"
// spec §1 lists as an out-of-scope external collaborator ("static
// connector/channel catalogs") — the same pattern as
// secretvault.Catalog. finalize's "MCP servers come from the catalog by
// selected keys and cannot be invented" rule is enforced by MCPServer
// returning ok=false for any key the catalog doesn't recognize.
type Catalog interface {
	Components() []ComponentItem
	MCPServer(key string) (store.MCPServerSpec, bool)
	AgentSkill(key string) (store.AgentSkillSpec, bool)
	ProviderSupportsContext(provider, context string) bool
	ProviderRequiresOAuth(provider string) bool
	ProviderConnectorID(provider string) string
}

// StaticCatalog is the in-repo default Catalog implementation; cmd/server
// may substitute a richer one without touching this package.
type StaticCatalog struct {
	components  []ComponentItem
	mcpServers  map[string]store.MCPServerSpec
	agentSkills map[string]store.AgentSkillSpec
	providers   map[string]providerInfo
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		mcpServers:  map[string]store.MCPServerSpec{},
		agentSkills: map[string]store.AgentSkillSpec{},
		providers:   map[string]providerInfo{},
	}
}

func (c *StaticCatalog) AddComponent(item ComponentItem) *StaticCatalog {
	c.components = append(c.components, item)
	return c
}

func (c *StaticCatalog) AddMCPServer(key string, spec store.MCPServerSpec) *StaticCatalog {
	c.mcpServers[key] = spec
	return c
}

func (c *StaticCatalog) AddAgentSkill(key string, spec store.AgentSkillSpec) *StaticCatalog {
	c.agentSkills[key] = spec
	return c
}

func (c *StaticCatalog) AddProvider(provider string, contexts []string, requiresOAuth bool, connectorID string) *StaticCatalog {
	ctxSet := make(map[string]bool, len(contexts))
	for _, ctx := range contexts {
		ctxSet[ctx] = true
	}
	c.providers[provider] = providerInfo{contexts: ctxSet, requiresOAuth: requiresOAuth, connectorID: connectorID}
	return c
}

func (c *StaticCatalog) Components() []ComponentItem { return c.components }

func (c *StaticCatalog) MCPServer(key string) (store.MCPServerSpec, bool) {
	spec, ok := c.mcpServers[key]
	return spec, ok
}

func (c *StaticCatalog) AgentSkill(key string) (store.AgentSkillSpec, bool) {
	spec, ok := c.agentSkills[key]
	return spec, ok
}

func (c *StaticCatalog) ProviderSupportsContext(provider, context string) bool {
	info, ok := c.providers[provider]
	return ok && info.contexts[context]
}

func (c *StaticCatalog) ProviderRequiresOAuth(provider string) bool {
	return c.providers[provider].requiresOAuth
}

func (c *StaticCatalog) ProviderConnectorID(provider string) string {
	return c.providers[provider].connectorID
}

// DefaultCatalog wires the provider set spec §4.8's "Provider dispatch"
// names (anthropic-compatible/openai-compatible always usable password-
// style; google/vertex require OAuth secrets) plus a couple of
// representative MCP/skill components so the builder has something to
// rank against out of the box.
func DefaultCatalog() *StaticCatalog {
	c := NewStaticCatalog().
		AddProvider("anthropic-compatible", []string{"session", "workflowAgentRun", "toolsetBuilder"}, false, "").
		AddProvider("openai-compatible", []string{"session", "workflowAgentRun", "toolsetBuilder"}, false, "").
		AddProvider("google", []string{"session", "workflowAgentRun", "toolsetBuilder"}, true, "llm.google.oauth").
		AddProvider("vertex", []string{"session", "workflowAgentRun", "toolsetBuilder"}, true, "llm.vertex.oauth")

	c.AddComponent(ComponentItem{Key: "github", Name: "GitHub", Description: "issues, pull requests, repository search"}).
		AddMCPServer("github", store.MCPServerSpec{
			Name: "github",
			Env:  map[string]string{"GITHUB_TOKEN": "${ENV:GITHUB_TOKEN}"},
		})

	c.AddComponent(ComponentItem{Key: "filesystem", Name: "Filesystem", Description: "read and write local files"}).
		AddMCPServer("filesystem", store.MCPServerSpec{Name: "filesystem"})

	c.AddComponent(ComponentItem{Key: "pdf-report", Name: "PDF report skill", Description: "generate formatted PDF reports from structured data"}).
		AddAgentSkill("pdf-report", store.AgentSkillSpec{Format: "agentskills-v1", Files: []string{"SKILL.md"}})

	return c
}
