package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

var contentTracer = otel.Tracer("dental.internal.content")

// missingMarker caches a confirmed miss so repeated fallbacks skip the
// backing store.
const missingMarker = "\x00missing"

const defaultCacheTTL = 5 * time.Minute

// RedisCache is a read-through cache in front of another Store. Redis
// failures fall through to the backing store.
type RedisCache struct {
	next   Store
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisCache wraps next with a Redis cache. A non-positive ttl uses the
// default of five minutes.
func NewRedisCache(next Store, client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisCache {
	if next == nil {
		panic("content: backing store required")
	}
	if client == nil {
		panic("content: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisCache{next: next, redis: client, ttl: ttl, logger: logger}
}

func cacheKey(slug string, locale language.Locale) string {
	return fmt.Sprintf("content:%s:%s", NormalizeSlug(slug), locale)
}

func (c *RedisCache) Lookup(ctx context.Context, slug string, locale language.Locale) (string, error) {
	ctx, span := contentTracer.Start(ctx, "content.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("dental.slug", slug), attribute.String("dental.locale", string(locale)))

	key := cacheKey(slug, locale)
	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("dental.cache_hit", true))
		if cached == missingMarker {
			return "", ErrNotFound
		}
		return cached, nil
	case !errors.Is(err, redis.Nil):
		span.RecordError(err)
		c.logger.Warn("content cache read failed", "key", key, "error", err)
	}
	span.SetAttributes(attribute.Bool("dental.cache_hit", false))

	body, err := c.next.Lookup(ctx, slug, locale)
	switch {
	case errors.Is(err, ErrNotFound):
		c.store(ctx, key, missingMarker)
		return "", ErrNotFound
	case err != nil:
		span.RecordError(err)
		return "", err
	}
	c.store(ctx, key, body)
	return body, nil
}

// Upsert writes through to the backing store when it accepts writes and
// drops the cached entry.
func (c *RedisCache) Upsert(ctx context.Context, slug string, locale language.Locale, body string) error {
	w, ok := c.next.(Writer)
	if !ok {
		return fmt.Errorf("content: backing store is read-only")
	}
	if err := w.Upsert(ctx, slug, locale, body); err != nil {
		return err
	}
	return c.Invalidate(ctx, slug, locale)
}

// Invalidate removes a cached entry.
func (c *RedisCache) Invalidate(ctx context.Context, slug string, locale language.Locale) error {
	if err := c.redis.Del(ctx, cacheKey(slug, locale)).Err(); err != nil {
		return fmt.Errorf("content: invalidate: %w", err)
	}
	return nil
}

func (c *RedisCache) store(ctx context.Context, key, value string) {
	if err := c.redis.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("content cache write failed", "key", key, "error", err)
	}
}

// Locales delegates to the backing store when it can list locales.
func (c *RedisCache) Locales(ctx context.Context, slug string) ([]string, error) {
	lister, ok := c.next.(LocaleLister)
	if !ok {
		return nil, fmt.Errorf("content: backing store cannot list locales")
	}
	return lister.Locales(ctx, slug)
}
