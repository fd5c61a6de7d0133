package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"signal-monitor/internal/model"
)

// webhookRetryDelay separates the single retry after a 5xx response.
var webhookRetryDelay = 500 * time.Millisecond

type webhookPayload struct {
	Event   string              `json:"event"`
	Level   AlertLevel          `json:"level"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
	Signal  *model.SignalRecord `json:"signal,omitempty"`
	SentAt  string              `json:"ts"`
}

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint.
//
// Signal alerts carry an Idempotency-Key header derived from the signal's
// identity (symbol, indicator, bar time, direction), so a receiver can drop
// the duplicate sent by a retry.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	p := webhookPayload{
		Event:   "alert",
		Level:   alert.Level,
		Title:   alert.Title,
		Message: alert.Message,
		Signal:  alert.Signal,
		SentAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	var key string
	if alert.Signal != nil {
		p.Event = "signal"
		key = IdempotencyKey(*alert.Signal)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	status, err := w.post(ctx, body, key)
	if err == nil && status >= 500 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(webhookRetryDelay):
		}
		status, err = w.post(ctx, body, key)
	}
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook: %q returned status %d", alert.Title, status)
	}

	log.Printf("[notify] webhook delivered %q", alert.Title)
	return nil
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte, key string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook: send: %w", err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// IdempotencyKey returns a stable UUID (v5) for rec's dedup identity.
func IdempotencyKey(rec model.SignalRecord) string {
	name := fmt.Sprintf("%s|%s|%s|%s", rec.Symbol, rec.Indicator, rec.SignalDate, rec.Direction)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
