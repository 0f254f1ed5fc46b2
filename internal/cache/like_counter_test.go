package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounter(t *testing.T) (*LikeCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLikeCounter(client, time.Minute), mr
}

func TestLikeCounter_GetSetInvalidate(t *testing.T) {
	c, _ := newCounter(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "p1")
	assert.False(t, ok)

	stored, err := c.Fill(ctx, "p1", 3, 0)
	require.NoError(t, err)
	assert.True(t, stored)
	n, ok := c.Get(ctx, "p1")
	assert.True(t, ok)
	assert.EqualValues(t, 3, n)

	require.NoError(t, c.Invalidate(ctx, "p1"))
	_, ok = c.Get(ctx, "p1")
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 2, misses)
}

func TestLikeCounter_TTL(t *testing.T) {
	c, mr := newCounter(t)
	ctx := context.Background()

	_, err := c.Fill(ctx, "p1", 1, 0)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, "p1")
	assert.False(t, ok)
}

func TestLikeCounter_Many(t *testing.T) {
	c, _ := newCounter(t)
	ctx := context.Background()

	require.NoError(t, c.Invalidate(ctx, "b"))
	vers, err := c.Versions(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 0, "b": 1}, vers)

	require.NoError(t, c.FillMany(ctx, map[string]int64{"a": 1, "b": 0}, vers))
	got := c.GetMany(ctx, []string{"a", "b", "c"})
	assert.Equal(t, map[string]int64{"a": 1, "b": 0}, got)
}

func TestLikeCounter_RedisDown(t *testing.T) {
	c, mr := newCounter(t)
	mr.Close()
	_, ok := c.Get(context.Background(), "p1")
	assert.False(t, ok)
	assert.Empty(t, c.GetMany(context.Background(), []string{"p1"}))
}

func TestLikeCounter_FillAfterInvalidateIsDropped(t *testing.T) {
	c, _ := newCounter(t)
	ctx := context.Background()

	// 读者先拿代数、再查库；此时一次切换提交并失效
	ver, err := c.Version(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "p1"))

	stored, err := c.Fill(ctx, "p1", 7, ver)
	require.NoError(t, err)
	assert.False(t, stored, "a count read before the invalidation must not be cached")
	_, ok := c.Get(ctx, "p1")
	assert.False(t, ok)

	ver, err = c.Version(ctx, "p1")
	require.NoError(t, err)
	stored, err = c.Fill(ctx, "p1", 8, ver)
	require.NoError(t, err)
	assert.True(t, stored)
	n, ok := c.Get(ctx, "p1")
	assert.True(t, ok)
	assert.EqualValues(t, 8, n)
}

func TestLikeCounter_FillManySkipsStale(t *testing.T) {
	c, _ := newCounter(t)
	ctx := context.Background()

	vers, err := c.Versions(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "a"))

	require.NoError(t, c.FillMany(ctx, map[string]int64{"a": 5, "b": 6}, vers))
	assert.Equal(t, map[string]int64{"b": 6}, c.GetMany(ctx, []string{"a", "b"}))
}

func TestLikeCounter_GenerationOutlivesCount(t *testing.T) {
	c, mr := newCounter(t)
	ctx := context.Background()

	require.NoError(t, c.Invalidate(ctx, "p1"))
	assert.Greater(t, mr.TTL(likeGenKey("p1")), time.Minute)
}
