package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookNotifier POSTs intents as JSON to a configured endpoint. A
// per-intent Target overrides the default URL when set, so individual rules
// can route to their own hooks.
type WebhookNotifier struct {
	defaultURL string
	httpClient *http.Client
}

// NewWebhookNotifier constructs a webhook notifier with the given default
// endpoint and request timeout.
func NewWebhookNotifier(defaultURL string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		defaultURL: defaultURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send delivers the intent, returning an error on transport failure or a
// non-2xx response.
func (n *WebhookNotifier) Send(ctx context.Context, intent Intent) error {
	url := intent.Target
	if url == "" {
		url = n.defaultURL
	}
	if url == "" {
		return fmt.Errorf("no webhook target configured")
	}

	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Name identifies the notifier in dispatch logs.
func (n *WebhookNotifier) Name() string { return "webhook" }
