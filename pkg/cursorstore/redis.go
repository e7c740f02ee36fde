package cursorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

// DefaultPrefix is prepended to every Redis key.
const DefaultPrefix = "opencloud:cursor:"

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithTTL expires saved cursors after d. Zero keeps them forever.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d >= 0 {
			r.ttl = d
		}
	}
}

// WithPrefix replaces DefaultPrefix.
func WithPrefix(p string) RedisOption {
	return func(r *Redis) { r.prefix = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// Redis stores cursors as JSON strings in Redis.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis wraps a go-redis client (single node, cluster or ring).
func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: DefaultPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

// Load reads the cursor saved under key. It reports false when the Redis key
// does not exist or has expired.
func (r *Redis) Load(ctx context.Context, key string) (ordereddatastore.Cursor, bool, error) {
	if key == "" {
		return ordereddatastore.Cursor{}, false, ErrInvalidKey
	}
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ordereddatastore.Cursor{}, false, nil
	}
	if err != nil {
		return ordereddatastore.Cursor{}, false, fmt.Errorf("cursorstore: redis get %q: %w", key, err)
	}

	var c ordereddatastore.Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return ordereddatastore.Cursor{}, false, fmt.Errorf("cursorstore: decode cursor %q: %w", key, err)
	}
	return c, true, nil
}

// Save writes c under key as JSON, applying the configured TTL.
func (r *Redis) Save(ctx context.Context, key string, c ordereddatastore.Cursor) error {
	if key == "" {
		return ErrInvalidKey
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cursorstore: encode cursor: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cursorstore: redis set %q: %w", key, err)
	}
	r.logger.Debug("saved cursor",
		zap.String("key", key),
		zap.String("next_page_token", c.NextPageToken),
		zap.Bool("finished", c.Finished))
	return nil
}

// Delete removes the cursor saved under key. A missing key is not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("cursorstore: redis del %q: %w", key, err)
	}
	return nil
}
