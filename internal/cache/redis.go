package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/redis/go-redis/v9"
)

// Redis is a [FailedQueries] shared between processes. Errors are logged and treated as misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedis creates a cache from a redis:// URL. A zero ttl stores keys without expiry.
func NewRedis(redisURL string, ttl time.Duration, logger *log.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Redis{client: redis.NewClient(opts), ttl: ttl, logger: logger}, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Contains(ctx context.Context, key string) bool {
	n, err := r.client.Exists(ctx, FailedKey(key)).Result()
	if err != nil {
		r.logger.Warn("failed-query cache lookup failed", "key", key, "err", err)
		return false
	}
	return n > 0
}

func (r *Redis) Add(ctx context.Context, key string) {
	if err := r.client.Set(ctx, FailedKey(key), 1, r.ttl).Err(); err != nil {
		r.logger.Warn("failed-query cache write failed", "key", key, "err", err)
	}
}

// Clear deletes every failed-query key.
func (r *Redis) Clear(ctx context.Context) (int, error) {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
