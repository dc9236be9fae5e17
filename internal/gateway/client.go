// Package gateway is a thin HTTP client over the downstream session
// gateway, spec §1's "downstream gateway service" external collaborator.
// SPEC_FULL.md deliberately does not wire gorilla/websocket here: the
// gateway's websocket protocol is an explicit Non-goal, and the call this
// package makes (forwarding a session message) is a plain HTTP POST.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client forwards routed session messages to the gateway.
type Client struct {
	BaseURL      string
	ServiceToken string
	HTTPClient   *http.Client
}

func New(baseURL, serviceToken string) *Client {
	return &Client{
		BaseURL:      baseURL,
		ServiceToken: serviceToken,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// ForwardMessage implements spec §4.6's "POSTs to the gateway with the
// event's seq" step.
func (c *Client) ForwardMessage(ctx context.Context, sessionID uuid.UUID, seq int, eventType string, payload map[string]any) error {
	body, err := json.Marshal(map[string]any{
		"sessionId": sessionID,
		"seq":       seq,
		"eventType": eventType,
		"payload":   payload,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/internal/sessions/"+sessionID.String()+"/forward", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Token", c.ServiceToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: forward request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway: forward returned %d", resp.StatusCode)
	}
	return nil
}
