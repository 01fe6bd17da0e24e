package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookPusher posts push payloads to the push provider's HTTP endpoint.
type WebhookPusher struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewWebhookPusher(url, token string) *WebhookPusher {
	return &WebhookPusher{URL: url, Token: token, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Push performs the HTTP request. Non-2xx responses are errors so asynq retries.
func (w *WebhookPusher) Push(ctx context.Context, p PushPayload) error {
	if w.URL == "" {
		return fmt.Errorf("push webhook not configured: set PUSH_WEBHOOK_URL")
	}

	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", p.EventID)
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// include a bit of the body for context
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(msg) > 0 {
			return fmt.Errorf("push send failed: status=%d body=%s", resp.StatusCode, msg)
		}
		return fmt.Errorf("push send failed: status=%d", resp.StatusCode)
	}
	return nil
}
