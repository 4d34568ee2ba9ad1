package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value []byte
		ttl   time.Duration
	}{
		{
			name:  "store and retrieve payload",
			key:   "offer:nike:abc",
			value: []byte(`{"offerId":"nike.abc"}`),
			ttl:   time.Minute,
		},
		{
			name:  "store empty payload",
			key:   "offer:nike:empty",
			value: []byte{},
			ttl:   time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, cache.Set(ctx, tt.key, tt.value, tt.ttl))

			got, err := cache.Get(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, string(tt.value), string(got))
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, err := cache.Get(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	exists, err := cache.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCache_Miss(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()

	_, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestMemoryCache_CopiesPayloads(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	value := []byte("leather")
	require.NoError(t, cache.Set(ctx, "k", value, time.Minute))
	value[0] = 'X'

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "leather", string(got))

	got[0] = 'Y'
	again, _ := cache.Get(ctx, "k")
	assert.Equal(t, "leather", string(again))
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), time.Minute))
	assert.Equal(t, 2, cache.Size())

	require.NoError(t, cache.Delete(ctx, "a"))
	exists, _ := cache.Exists(ctx, "a")
	assert.False(t, exists)

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestMemoryCache_SweepsExpired(t *testing.T) {
	cache := newMemoryCache(5 * time.Millisecond)
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "gone", []byte("x"), time.Millisecond))
	require.NoError(t, cache.Set(ctx, "kept", []byte("y"), time.Hour))

	assert.Eventually(t, func() bool { return cache.Size() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			_ = cache.Set(ctx, key, []byte(key), time.Minute)
			_, _ = cache.Get(ctx, key)
			_, _ = cache.Exists(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, cache.Size())
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache()
	assert.NoError(t, cache.Close())
	assert.NoError(t, cache.Close())
}

func TestOpen(t *testing.T) {
	c, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	assert.NoError(t, c.Close())

	_, err = Open(context.Background(), "disk", "")
	assert.Error(t, err)
}
