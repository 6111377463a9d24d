package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	radix "github.com/mediocregopher/radix/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	pool, err := radix.NewPool("tcp", mr.Addr(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return NewRedisGuard(pool), mr
}

func TestRedisGuard_ClaimWithinWindow(t *testing.T) {
	g, mr := newRedisGuard(t)
	ctx := context.Background()

	ok, err := g.Claim(ctx, "cart:add:c1:1", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "cart:add:c1:1", 3*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// 其他客户端不受影响
	ok, err = g.Claim(ctx, "cart:add:c2:1", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(3 * time.Second)
	ok, err = g.Claim(ctx, "cart:add:c1:1", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ErrorWhenRedisDown(t *testing.T) {
	g, mr := newRedisGuard(t)
	mr.SetError("LOADING")

	_, err := g.Claim(context.Background(), "cart:add:c1:1", time.Second)
	assert.Error(t, err)
}

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := g.Claim(ctx, "k", 3*time.Second)
	assert.True(t, ok)
	ok, _ = g.Claim(ctx, "k", 3*time.Second)
	assert.False(t, ok)

	now = now.Add(3 * time.Second)
	ok, _ = g.Claim(ctx, "k", 3*time.Second)
	assert.True(t, ok)
}
