package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Signal-Signature"

// WebhookNotifier POSTs verdict alerts as JSON. Network errors and 5xx
// responses are retried with linear backoff; 4xx responses are not.
type WebhookNotifier struct {
	url      string
	secret   []byte
	client   *http.Client
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

// WebhookOption customizes a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithSecret signs every body with HMAC-SHA256 under secret.
func WithSecret(secret string) WebhookOption {
	return func(w *WebhookNotifier) {
		if secret != "" {
			w.secret = []byte(secret)
		}
	}
}

// WithRetry sets the number of delivery attempts and the base backoff.
func WithRetry(attempts int, backoff time.Duration) WebhookOption {
	return func(w *WebhookNotifier) {
		if attempts > 0 {
			w.attempts = attempts
		}
		w.backoff = backoff
	}
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 3,
		backoff:  500 * time.Millisecond,
		now:      time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

type webhookPayload struct {
	Alert
	TS string `json:"ts"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{Alert: alert, TS: w.now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		retry, err := w.post(ctx, body)
		if err == nil {
			slog.Debug("webhook alert sent", "title", alert.Title, "attempt", attempt)
			return nil
		}
		lastErr = err
		if !retry || attempt == w.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("webhook: %w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(time.Duration(attempt) * w.backoff):
		}
	}
	return lastErr
}

// post delivers body once and reports whether a failure is worth retrying.
func (w *WebhookNotifier) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != nil {
		mac := hmac.New(sha256.New, w.secret)
		mac.Write(body)
		req.Header.Set(SignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("webhook: send: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode >= 500, fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return false, nil
}
