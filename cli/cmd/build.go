package cmd

import (
	"context"
	"fmt"
	"io"

	triageconfig "github.com/pithecene-io/triage/cli/config"
	"github.com/pithecene-io/triage/adapter"
	redisadapter "github.com/pithecene-io/triage/adapter/redis"
	"github.com/pithecene-io/triage/adapter/webhook"
	"github.com/pithecene-io/triage/classify"
	"github.com/pithecene-io/triage/lode"
	"github.com/pithecene-io/triage/log"
	"github.com/pithecene-io/triage/runlock"
	"github.com/pithecene-io/triage/storage"
	"github.com/pithecene-io/triage/types"
)

// buildBackend creates the configured storage backend.
func buildBackend(ctx context.Context, cfg *triageconfig.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case types.BackendFS:
		return storage.NewFSBackend(cfg.FSBackendConfig())
	case types.BackendS3:
		return storage.NewS3Backend(ctx, cfg.S3BackendConfig())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", cfg.Storage.Backend)
	}
}

// buildClassifier creates the classification service client.
func buildClassifier(cfg *triageconfig.Config) (*classify.Client, error) {
	return classify.New(cfg.ClientConfig())
}

// lockHandle pairs a lock with its cleanup.
type lockHandle struct {
	lock  runlock.Lock
	close func() error
}

// buildLock creates the run lock. An unset lock type means no lock.
func buildLock(cfg *triageconfig.Config) (*lockHandle, error) {
	switch cfg.Lock.Type {
	case "", "none":
		return &lockHandle{lock: runlock.Noop{}, close: func() error { return nil }}, nil
	case "redis":
		l, err := runlock.NewRedisLock(runlock.RedisConfig{
			URL: cfg.Lock.URL,
			Key: cfg.Lock.Key,
			TTL: cfg.Lock.TTL.Duration,
		})
		if err != nil {
			return nil, err
		}
		return &lockHandle{lock: l, close: l.Close}, nil
	default:
		return nil, fmt.Errorf("unknown lock type: %s (must be none or redis)", cfg.Lock.Type)
	}
}

// buildAdapter creates the completion adapter, or nil when none is configured.
func buildAdapter(cfg *triageconfig.Config) (adapter.Adapter, error) {
	ac := cfg.Adapter
	retries := webhook.DefaultRetries
	if ac.Retries != nil {
		retries = *ac.Retries
	}

	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Secret:  ac.Secret,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		a, err := redisadapter.New(redisadapter.Config{
			URL:          ac.URL,
			Channel:      ac.Channel,
			Stream:       ac.Stream,
			StreamMaxLen: ac.StreamMaxLen,
			Timeout:      ac.Timeout.Duration,
			Retries:      retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", ac.Type)
	}
}

// buildSummaryStore creates the run summary store, or nil when disabled.
func buildSummaryStore(ctx context.Context, cfg *triageconfig.Config) (*lode.SummaryStore, error) {
	sc := cfg.Summary
	switch sc.Backend {
	case "", "none":
		return nil, nil
	case types.BackendFS:
		return lode.NewFSSummaryStore(sc.Path, sc.Format)
	case types.BackendS3:
		bucket, prefix := lode.ParseS3Path(sc.Path)
		return lode.NewS3SummaryStore(ctx, lode.S3Config{
			ClientConfig: cfg.S3BackendConfig().ClientConfig,
			Bucket:       bucket,
			Prefix:       prefix,
		}, sc.Format)
	default:
		return nil, fmt.Errorf("unknown summary backend: %s (must be none, fs or s3)", sc.Backend)
	}
}

// buildLogger creates the run logger at the configured level.
func buildLogger(cfg *triageconfig.Config, runMeta *types.RunMeta, out io.Writer) (*log.Logger, error) {
	return log.NewLoggerWithOptions(runMeta, log.Options{
		Level:  cfg.Logging.Level,
		Output: out,
	})
}
