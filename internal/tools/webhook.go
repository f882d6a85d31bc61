package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fitrelay-platform/fitrelay/internal/config"
)

const webhookPathSegment = "/webhook"

// NormalizeWebhookBase canonicalizes the configured automation root so
// it always ends in the webhook path segment, regardless of how the
// operator wrote it.
func NormalizeWebhookBase(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasSuffix(base, webhookPathSegment) {
		base += webhookPathSegment
	}
	return base
}

// WebhookClient talks to the workflow-automation backend. Generic
// tools go to POST {base}/tool/{name}; WhatsApp delivery goes to the
// dedicated send-whatsapp endpoint with idempotency and trace headers.
type WebhookClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewWebhookClient builds a client for the configured automation backend.
func NewWebhookClient(cfg config.AutomationConfig) *WebhookClient {
	return &WebhookClient{
		baseURL: NormalizeWebhookBase(cfg.WebhookBaseURL),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CallTool forwards raw JSON arguments to the generic tool endpoint
// and returns the raw response body.
func (c *WebhookClient) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return c.post(ctx, "/tool/"+name, []byte(args), nil)
}

// SendWhatsApp posts an outbound message to the messaging endpoint.
func (c *WebhookClient) SendWhatsApp(ctx context.Context, msg OutboundMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	headers := map[string]string{
		"Idempotency-Key": uuid.New().String(),
		"X-Trace-ID":      uuid.New().String(),
	}
	return c.post(ctx, "/tool/send-whatsapp", body, headers)
}

func (c *WebhookClient) post(ctx context.Context, path string, body []byte, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%s returned %s: %s", path, resp.Status, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}
