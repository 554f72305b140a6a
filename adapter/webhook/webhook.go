// Package webhook announces finished runs with an HTTP POST.
//
// The body is the JSON RunCompletedEvent. Each request carries the event
// type and run ID as headers, and the run ID doubles as an Idempotency-Key
// so receivers can discard duplicates caused by retries. When a secret is
// configured the body is signed with HMAC-SHA256.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pithecene-io/triage/adapter"
	"github.com/pithecene-io/triage/iox"
)

// Request headers set on every delivery.
const (
	HeaderEvent       = "X-Triage-Event"
	HeaderRunID       = "X-Triage-Run-Id"
	HeaderSignature   = "X-Triage-Signature"
	HeaderIdempotency = "Idempotency-Key"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the retry count used by the CLI when none is configured.
	DefaultRetries = 3
)

// Config configures the webhook adapter.
type Config struct {
	// URL receives the POST (required).
	URL string
	// Headers are added to every request after the built-in ones.
	Headers map[string]string
	// Secret enables the X-Triage-Signature header.
	Secret    string
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration
}

// Adapter posts run completion events to a URL.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retriable reports whether the receiver may accept a later attempt.
// Server errors, 408 and 429 are retried; other client errors are not.
func (e *StatusError) Retriable() bool {
	switch {
	case e.Code >= 500:
		return true
	case e.Code == http.StatusRequestTimeout, e.Code == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// Publish posts event, retrying transport failures and retriable statuses.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	header := a.header(event, body)

	return adapter.Retry(ctx, "webhook", a.cfg.Retries, a.cfg.BaseDelay, func(ctx context.Context) error {
		err := a.post(ctx, header, body)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retriable() {
			return &adapter.Permanent{Err: err}
		}
		return err
	})
}

// header builds the request headers once per event.
func (a *Adapter) header(event *adapter.RunCompletedEvent, body []byte) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set(HeaderEvent, event.EventType)
	if event.RunID != "" {
		h.Set(HeaderRunID, event.RunID)
		h.Set(HeaderIdempotency, event.RunID)
	}
	if a.cfg.Secret != "" {
		h.Set(HeaderSignature, Sign(a.cfg.Secret, body))
	}
	for k, v := range a.cfg.Headers {
		h.Set(k, v)
	}
	return h
}

func (a *Adapter) post(ctx context.Context, header http.Header, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = header.Clone()

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Sign returns the signature header value for body: "sha256=" followed by
// the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Close drops idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
