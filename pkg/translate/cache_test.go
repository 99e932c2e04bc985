package translate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, next Translator, opts ...CacheOption) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(next, client, opts...), mr
}

func TestCacheHit(t *testing.T) {
	stub := &stubTranslator{out: "Hello"}
	cache, mr := setupCache(t, stub)
	ctx := context.Background()

	require.NoError(t, cache.Load(ctx))

	for range 3 {
		out, err := cache.Translate(ctx, "สวัสดี", "th", "en")
		require.NoError(t, err)
		assert.Equal(t, "Hello", out)
	}
	assert.Equal(t, 1, stub.calls)
	assert.Len(t, mr.Keys(), 1)
}

func TestCacheKeyedByLanguagePair(t *testing.T) {
	stub := &stubTranslator{out: "x"}
	cache, _ := setupCache(t, stub)
	ctx := context.Background()

	_, _ = cache.Translate(ctx, "hello", "en", "th")
	_, _ = cache.Translate(ctx, "hello", "en", "ja")
	assert.Equal(t, 2, stub.calls)
}

func TestCacheTTLAndPrefix(t *testing.T) {
	stub := &stubTranslator{out: "Hello"}
	cache, mr := setupCache(t, stub, WithCacheTTL(time.Minute), WithCachePrefix("test"))

	_, err := cache.Translate(context.Background(), "สวัสดี", "th", "en")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "test:th:en:")
	assert.Equal(t, time.Minute, mr.TTL(keys[0]))

	mr.FastForward(2 * time.Minute)
	_, err = cache.Translate(context.Background(), "สวัสดี", "th", "en")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}

func TestCacheErrorsNotStored(t *testing.T) {
	stub := &stubTranslator{err: errors.New("down")}
	cache, mr := setupCache(t, stub)

	_, err := cache.Translate(context.Background(), "hello", "en", "th")
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCacheRedisDown(t *testing.T) {
	stub := &stubTranslator{out: "Hello"}
	cache, mr := setupCache(t, stub)
	mr.Close()

	ctx := context.Background()
	require.NoError(t, cache.Load(ctx))

	out, err := cache.Translate(ctx, "สวัสดี", "th", "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)
}
