package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL    = 24 * time.Hour
	defaultCachePrefix = "interp:tr"
)

// Cache memoizes translations in Redis. Redis failures are logged and
// bypassed so the cache never turns a working translator into a failing one.
type Cache struct {
	next   Translator
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheTTL sets how long entries live. Zero means no expiry.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithCachePrefix sets the Redis key prefix.
func WithCachePrefix(prefix string) CacheOption {
	return func(c *Cache) { c.prefix = prefix }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// NewCache wraps next with a Redis-backed cache.
func NewCache(next Translator, client redis.UniversalClient, opts ...CacheOption) *Cache {
	c := &Cache{
		next:   next,
		client: client,
		ttl:    defaultCacheTTL,
		prefix: defaultCachePrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("translate.cache")
	return c
}

func (c *Cache) Name() string { return c.next.Name() }

// Load loads the wrapped translator and checks Redis is reachable.
func (c *Cache) Load(ctx context.Context) error {
	if err := c.next.Load(ctx); err != nil {
		return err
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("redis unreachable, cache disabled until it recovers", zap.Error(err))
	}
	return nil
}

func (c *Cache) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	key := c.key(text, sourceLang, targetLang)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Debug("cache get failed", zap.Error(err))
	}

	out, err := c.next.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	if out != "" {
		if err := c.client.Set(ctx, key, out, c.ttl).Err(); err != nil {
			c.logger.Debug("cache set failed", zap.Error(err))
		}
	}
	return out, nil
}

func (c *Cache) key(text, sourceLang, targetLang string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + ":" + sourceLang + ":" + targetLang + ":" + hex.EncodeToString(sum[:])
}

var _ Translator = (*Cache)(nil)
