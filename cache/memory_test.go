package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_MarkAndCheck(t *testing.T) {
	c := NewMemoryCache(10, time.Hour, false)
	defer c.Close()
	ctx := context.Background()

	processed, err := c.IsProcessed(ctx, "digest-a")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, c.MarkProcessed(ctx, "digest-a", time.Minute))

	processed, err = c.IsProcessed(ctx, "digest-a")
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = c.IsProcessed(ctx, "digest-b")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10, time.Hour, false)
	defer c.Close()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.MarkProcessed(ctx, "digest", time.Minute))

	now = now.Add(30 * time.Second)
	processed, err := c.IsProcessed(ctx, "digest")
	require.NoError(t, err)
	assert.True(t, processed)

	now = now.Add(time.Minute)
	processed, err = c.IsProcessed(ctx, "digest")
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_EvictsAtMaxSize(t *testing.T) {
	c := NewMemoryCache(2, time.Hour, false)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.MarkProcessed(ctx, "a", time.Minute))
	require.NoError(t, c.MarkProcessed(ctx, "b", time.Minute))
	require.NoError(t, c.MarkProcessed(ctx, "c", time.Minute))

	assert.Equal(t, 2, c.Len())
	processed, err := c.IsProcessed(ctx, "c")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestMemoryCache_LRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2, time.Hour, true)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.MarkProcessed(ctx, "a", time.Minute))
	require.NoError(t, c.MarkProcessed(ctx, "b", time.Minute))

	// touch a so b becomes the oldest
	processed, err := c.IsProcessed(ctx, "a")
	require.NoError(t, err)
	require.True(t, processed)

	require.NoError(t, c.MarkProcessed(ctx, "c", time.Minute))

	for key, want := range map[string]bool{"a": true, "b": false, "c": true} {
		got, err := c.IsProcessed(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache(10, time.Hour, false)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.IsProcessed(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.ErrorIs(t, c.MarkProcessed(context.Background(), "abc", time.Minute), ErrCacheClosed)
}
