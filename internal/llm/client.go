// Package llm implements the LLM provider dispatch table spec §4.8's
// "Provider dispatch" step names: route to the correct client by apiKind,
// honoring org-level {baseUrl, apiKind} overrides. Grounded on
// goadesign-goa-ai/features/model/anthropic's Client/Options shape — a
// small interface wrapping the SDK's message client so a mock can stand in
// for tests, translated here from goa-ai's generic model.Request into this
// domain's {system, messages} shape.
package llm

import "context"

// Message is one turn in a chat-completion request.
type Message struct {
	Role string // "user" | "assistant"
	Text string
}

// Request is the provider-agnostic completion request the toolset-builder
// engine and agent-session routing issue.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Response is the provider-agnostic completion result.
type Response struct {
	Text string
}

// Client is one LLM provider's completion capability. apiKind-specific
// implementations (anthropic-compatible, openai-compatible, google,
// vertex) all satisfy this.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config is the per-call provider selection spec §4.8's provider dispatch
// names: apiKind plus the org-level {baseUrl, apiKind} overrides and the
// model identifier from the session/builder's LLMConfig.
type Config struct {
	APIKind string // "anthropic-compatible" | "openai-compatible" | "google" | "vertex"
	Model   string
	BaseURL string
	APIKey  string // resolved secret plaintext, or Vertex refresh-token JSON blob
}

// Dispatcher routes a Config to the Client that can serve it.
type Dispatcher struct {
	newAnthropic func(cfg Config) (Client, error)
	newOpenAI    func(cfg Config) (Client, error)
	newGoogle    func(cfg Config) (Client, error)
	newVertex    func(cfg Config) (Client, error)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		newAnthropic: newAnthropicClient,
		newOpenAI:    newOpenAIClient,
		newGoogle:    newGoogleClient,
		newVertex:    newVertexClient,
	}
}

// Client builds the Client for cfg.APIKind.
func (d *Dispatcher) Client(cfg Config) (Client, error) {
	switch cfg.APIKind {
	case "anthropic-compatible":
		return d.newAnthropic(cfg)
	case "openai-compatible":
		return d.newOpenAI(cfg)
	case "google":
		return d.newGoogle(cfg)
	case "vertex":
		return d.newVertex(cfg)
	default:
		return nil, unsupportedAPIKind(cfg.APIKind)
	}
}

type unsupportedAPIKindError string

func (e unsupportedAPIKindError) Error() string { return "llm: unsupported apiKind: " + string(e) }

func unsupportedAPIKind(kind string) error { return unsupportedAPIKindError(kind) }
