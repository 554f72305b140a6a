// Package redis announces finished runs over Redis.
//
// Every event is PUBLISHed as JSON on a channel. When a stream is
// configured the same event is also appended to a capped Redis stream in
// the same MULTI block, so consumers that were offline during the run can
// still find it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/triage/adapter"
)

const (
	// DefaultChannel is the pub/sub channel used when none is configured.
	DefaultChannel = "triage:run_completed"
	// DefaultStreamMaxLen caps the completion stream.
	DefaultStreamMaxLen = 1000
	// DefaultTimeout bounds a single publish attempt.
	DefaultTimeout = 5 * time.Second
	// DefaultRetries is the retry count used by the CLI when none is configured.
	DefaultRetries = 3
)

// Config configures the Redis adapter.
type Config struct {
	// URL is a redis:// connection URL (required).
	URL string
	// Channel defaults to DefaultChannel.
	Channel string
	// Stream, when set, also records each event with XADD.
	Stream string
	// StreamMaxLen defaults to DefaultStreamMaxLen.
	StreamMaxLen int64
	Timeout      time.Duration
	Retries      int
	// BaseDelay is the first backoff interval (default 500ms).
	BaseDelay time.Duration
}

// Adapter publishes run completion events to Redis.
type Adapter struct {
	cfg    Config
	client *goredis.Client
}

// New validates cfg, fills defaults and opens a client.
// The connection is established lazily on first publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Stream != "" && cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = DefaultStreamMaxLen
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{cfg: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends event on the channel and, if configured, the stream.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	return adapter.Retry(ctx, "redis", a.cfg.Retries, a.cfg.BaseDelay, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		err := a.send(attemptCtx, event, payload)
		if errors.Is(err, goredis.ErrClosed) {
			return &adapter.Permanent{Err: err}
		}
		return err
	})
}

func (a *Adapter) send(ctx context.Context, event *adapter.RunCompletedEvent, payload []byte) error {
	if a.cfg.Stream == "" {
		return a.client.Publish(ctx, a.cfg.Channel, payload).Err()
	}

	_, err := a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Publish(ctx, a.cfg.Channel, payload)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: a.cfg.Stream,
			MaxLen: a.cfg.StreamMaxLen,
			Values: map[string]any{
				"run_id":  event.RunID,
				"outcome": event.Outcome,
				"event":   string(payload),
			},
		})
		return nil
	})
	return err
}

// Close closes the client.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
