package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	httpclient "github.com/026iFly/foam-sub000/internal/common/http"
)

// WebhookClient posts messages to a Discord webhook URL.
type WebhookClient struct {
	webhookURL string
	httpClient *httpclient.Client
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: httpclient.NewClient(30 * time.Second),
	}
}

// SendMessage posts a plain-text message mentioning the given user ID when set.
func (c *WebhookClient) SendMessage(ctx context.Context, userID, message string) error {
	content := message
	if userID != "" {
		content = fmt.Sprintf("<@%s> %s", userID, message)
	}

	return c.post(ctx, webhookPayload{Content: content})
}

// SendEmbed posts a rich embed message.
func (c *WebhookClient) SendEmbed(ctx context.Context, content string, embed Embed) error {
	return c.post(ctx, webhookPayload{
		Content: content,
		Embeds:  []Embed{embed},
	})
}

func (c *WebhookClient) post(ctx context.Context, payload webhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord webhook failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
