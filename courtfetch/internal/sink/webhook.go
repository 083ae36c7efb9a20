package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// Webhook POSTs outcomes and summaries as JSON with retry and exponential
// backoff. Transcript lines and documents are not sent.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay; it doubles each retry.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) Line(context.Context, string) error { return nil }

func (w *Webhook) Result(context.Context, record.FetchResult) error { return nil }

func (w *Webhook) Outcome(ctx context.Context, out record.CaseOutcome) error {
	return w.post(ctx, "outcome", out)
}

func (w *Webhook) Summary(ctx context.Context, sum *record.RunSummary) error {
	return w.post(ctx, "summary", sum)
}

func (w *Webhook) Close() error { return nil }

func (w *Webhook) post(ctx context.Context, typ string, data any) error {
	body, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := range w.maxRetries + 1 {
		if attempt > 0 {
			t := time.NewTimer(w.backoff << (attempt - 1))
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}

		status, err := w.send(ctx, body)
		switch {
		case err != nil:
			lastErr = err
			w.logger.Warn("webhook: request failed", "type", typ, "attempt", attempt+1, "error", err)
		case status >= 200 && status < 300:
			return nil
		case status >= 400 && status < 500 && status != http.StatusTooManyRequests:
			return fmt.Errorf("webhook: %s rejected: status %d", typ, status)
		default:
			lastErr = fmt.Errorf("webhook: status %d", status)
			w.logger.Warn("webhook: bad status", "type", typ, "attempt", attempt+1, "status", status)
		}
	}
	return fmt.Errorf("webhook: %s: all retries exhausted: %w", typ, lastErr)
}

func (w *Webhook) send(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hcbot")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}
