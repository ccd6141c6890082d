package content

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

type countingStore struct {
	*StaticStore
	lookups int
}

func (c *countingStore) Lookup(ctx context.Context, slug string, locale language.Locale) (string, error) {
	c.lookups++
	return c.StaticStore.Lookup(ctx, slug, locale)
}

func newCache(t *testing.T) (*RedisCache, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backing := &countingStore{StaticStore: NewStaticStore()}
	return NewRedisCache(backing, client, time.Minute, logging.Default()), backing, mr
}

func TestRedisCacheReadThrough(t *testing.T) {
	cache, backing, _ := newCache(t)
	ctx := context.Background()
	_ = backing.Upsert(ctx, "inquiry.general", language.English, "How can I help?")

	for i := 0; i < 3; i++ {
		body, err := cache.Lookup(ctx, "inquiry.general", language.English)
		if err != nil || body != "How can I help?" {
			t.Fatalf("Lookup #%d = %q, %v", i, body, err)
		}
	}
	if backing.lookups != 1 {
		t.Fatalf("expected one backing lookup, got %d", backing.lookups)
	}
}

func TestRedisCacheNegativeEntries(t *testing.T) {
	cache, backing, mr := newCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.Lookup(ctx, "fallback.unknown", language.Arabic); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if backing.lookups != 1 {
		t.Fatalf("expected miss to be cached, got %d backing lookups", backing.lookups)
	}

	mr.FastForward(2 * time.Minute)
	_, _ = cache.Lookup(ctx, "fallback.unknown", language.Arabic)
	if backing.lookups != 2 {
		t.Fatalf("expected expired miss to reach the store, got %d", backing.lookups)
	}
}

func TestRedisCacheUpsertInvalidates(t *testing.T) {
	cache, _, _ := newCache(t)
	ctx := context.Background()

	if _, err := cache.Lookup(ctx, "booking.reminder", language.English); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := cache.Upsert(ctx, "booking.reminder", language.English, "See you soon."); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	body, err := cache.Lookup(ctx, "booking.reminder", language.English)
	if err != nil || body != "See you soon." {
		t.Fatalf("expected fresh template after upsert, got %q, %v", body, err)
	}
}

func TestRedisCacheUpsertInvalidatesAcrossSlugCase(t *testing.T) {
	cache, backing, _ := newCache(t)
	ctx := context.Background()
	_ = backing.Upsert(ctx, "greeting.initial", language.English, "Hi.")

	if body, err := cache.Lookup(ctx, "Greeting.Initial", language.English); err != nil || body != "Hi." {
		t.Fatalf("expected mixed-case lookup to hit the stored template, got %q, %v", body, err)
	}
	if err := cache.Upsert(ctx, "GREETING.INITIAL", language.English, "Welcome back."); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	body, err := cache.Lookup(ctx, "greeting.initial", language.English)
	if err != nil || body != "Welcome back." {
		t.Fatalf("expected upsert to invalidate the cached entry, got %q, %v", body, err)
	}
	if backing.lookups != 2 {
		t.Fatalf("expected one backing lookup per cache fill, got %d", backing.lookups)
	}
}

func TestRedisCacheFallsThroughWhenRedisDown(t *testing.T) {
	cache, backing, mr := newCache(t)
	ctx := context.Background()
	_ = backing.Upsert(ctx, "inquiry.general", language.English, "Hello")
	mr.Close()

	body, err := cache.Lookup(ctx, "inquiry.general", language.English)
	if err != nil || body != "Hello" {
		t.Fatalf("expected backing store answer, got %q, %v", body, err)
	}
}
