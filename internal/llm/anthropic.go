package llm

import (
	"context"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicClient implements Client on top of anthropic-sdk-go's Messages
// service, grounded on goadesign-goa-ai's features/model/anthropic
// adapter (same New/Complete shape, narrowed to this package's
// Request/Response instead of goa-ai's generic model.Request).
type anthropicClient struct {
	msg   *sdk.MessageService
	model string
}

func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: anthropic-compatible requires an api key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	ac := sdk.NewClient(opts...)
	return &anthropicClient{msg: &ac.Messages, model: cfg.Model}, nil
}

func (c *anthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, fmt.Errorf("llm: anthropic request requires at least one message")
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Text)
		if m.Role == "assistant" {
			msgs = append(msgs, sdk.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, sdk.NewUserMessage(block))
		}
	}

	params := sdk.MessageNewParams{
		MaxTokens: maxTokens,
		Messages:  msgs,
		Model:     sdk.Model(c.model),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("llm: anthropic messages.new: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			text += block.Text
		}
	}
	return Response{Text: text}, nil
}
