package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	xgoogle "golang.org/x/oauth2/google"
)

// vertexSecret is the JSON blob shape spec §4.8 names for the vertex
// apiKind: "the secret is a JSON blob containing {refreshToken, projectId,
// location}."
type vertexSecret struct {
	RefreshToken string `json:"refreshToken"`
	ProjectID    string `json:"projectId"`
	Location     string `json:"location"`
}

// vertexClient implements Client against Vertex AI's OpenAI-compatible
// endpoint, grounded on rakunlabs-at's vertex provider (same endpoint
// shape and oauth2.TokenSource-backed bearer auth), but sourcing the token
// from the stored refresh-token secret (spec §4.4's Vertex OAuth variant)
// instead of Application Default Credentials, since this apiKind's secret
// is per-organization rather than ambient on the host.
type vertexClient struct {
	tokenSource oauth2.TokenSource
	projectID   string
	location    string
	model       string
	httpClient  *http.Client
}

func newVertexClient(cfg Config) (Client, error) {
	var secret vertexSecret
	if err := json.Unmarshal([]byte(cfg.APIKey), &secret); err != nil {
		return nil, fmt.Errorf("llm: vertex secret must be a {refreshToken, projectId, location} JSON blob: %w", err)
	}
	if secret.RefreshToken == "" || secret.ProjectID == "" || secret.Location == "" {
		return nil, fmt.Errorf("llm: vertex secret missing refreshToken, projectId, or location")
	}

	oauthCfg := &oauth2.Config{Endpoint: xgoogle.Endpoint}
	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: secret.RefreshToken})

	return &vertexClient{
		tokenSource: tokenSource,
		projectID:   secret.ProjectID,
		location:    secret.Location,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: 25 * time.Second},
	}, nil
}

func (c *vertexClient) endpointURL() string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/endpoints/openapi/chat/completions",
		c.location, c.projectID, c.location)
}

type vertexChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type vertexChatRequest struct {
	Model    string              `json:"model"`
	Messages []vertexChatMessage `json:"messages"`
}

type vertexChatResponse struct {
	Choices []struct {
		Message vertexChatMessage `json:"message"`
	} `json:"choices"`
}

func (c *vertexClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, fmt.Errorf("llm: vertex request requires at least one message")
	}

	token, err := c.tokenSource.Token()
	if err != nil {
		return Response{}, fmt.Errorf("llm: vertex token refresh failed: %w", err)
	}

	messages := make([]vertexChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, vertexChatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, vertexChatMessage{Role: m.Role, Content: m.Text})
	}

	body, err := json.Marshal(vertexChatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(), bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("llm: vertex chat completion request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("llm: vertex chat completion returned %d", resp.StatusCode)
	}

	var decoded vertexChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("llm: decoding vertex response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, fmt.Errorf("llm: vertex response had no choices")
	}
	return Response{Text: decoded.Choices[0].Message.Content}, nil
}
