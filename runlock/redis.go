package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is the default lock key.
const DefaultKey = "triage:run_lock"

// DefaultTTL bounds how long a crashed run can keep the lock.
const DefaultTTL = 30 * time.Minute

// releaseScript deletes the key only when it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig configures the Redis run lock.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Key is the lock key (default: triage:run_lock).
	Key string
	// TTL is the lock expiry (default 30m).
	TTL time.Duration
}

// RedisLock is a single-holder lock stored as a Redis key with an expiry.
type RedisLock struct {
	config RedisConfig
	client goredis.UniversalClient
	owned  bool
}

// NewRedisLock creates a Redis run lock from the given config.
func NewRedisLock(cfg RedisConfig) (*RedisLock, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis lock requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis lock: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	l, err := NewRedisLockWithClient(cfg, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// NewRedisLockWithClient creates a lock over an existing client.
// The client is not closed by Close.
func NewRedisLockWithClient(cfg RedisConfig, client goredis.UniversalClient) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis lock requires a client")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < time.Millisecond {
		return nil, fmt.Errorf("lock ttl must be >= 1ms, got %s", cfg.TTL)
	}
	return &RedisLock{config: cfg, client: client}, nil
}

// Acquire implements Lock using SET NX PX with a random token.
func (l *RedisLock) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.config.Key, token, l.config.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock: acquire %s: %w", l.config.Key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var relErr error
		once.Do(func() {
			if err := releaseScript.Run(ctx, l.client, []string{l.config.Key}, token).Err(); err != nil {
				relErr = fmt.Errorf("redis lock: release %s: %w", l.config.Key, err)
			}
		})
		return relErr
	}, nil
}

// Close releases the client when the lock created it.
func (l *RedisLock) Close() error {
	if !l.owned {
		return nil
	}
	return l.client.Close()
}

var _ Lock = (*RedisLock)(nil)
