package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urbanstyle/supportbot/internal/delivery"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

const defaultWebhookAPIBase = "https://discord.com/api/v10"

// FollowupClient posts the deferred second-phase answer through the
// interaction webhook. Failures are reported to the caller but never
// retried; the interaction token is short-lived and a duplicate answer is
// worse than a missing one.
type FollowupClient struct {
	apiBase string
	client  *http.Client
	logger  *logging.Logger
}

// NewFollowupClient creates the webhook follow-up poster.
func NewFollowupClient(client *http.Client, logger *logging.Logger) *FollowupClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FollowupClient{
		apiBase: defaultWebhookAPIBase,
		client:  client,
		logger:  logger,
	}
}

// WithAPIBase overrides the Discord API base URL.
func (c *FollowupClient) WithAPIBase(base string) *FollowupClient {
	if base != "" {
		c.apiBase = base
	}
	return c
}

// PostFollowup executes the interaction webhook with the final answer.
func (c *FollowupClient) PostFollowup(ctx context.Context, applicationID, token, content string) error {
	if applicationID == "" || token == "" {
		return fmt.Errorf("discord: follow-up requires application id and token")
	}

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("discord: encode follow-up: %w", err)
	}

	url := fmt.Sprintf("%s/webhooks/%s/%s", c.apiBase, applicationID, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("discord: build follow-up request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: post follow-up: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &delivery.StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}
