package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/cache/redis"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDenylist(t *testing.T) (*redis.Denylist, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewDenylist(client, "sso"), mr
}

func TestDenylist_AddContains(t *testing.T) {
	d, mr := newDenylist(t)
	ctx := context.Background()

	require.NoError(t, d.Add(ctx, "jti-1", time.Now().Add(time.Hour)))

	ok, err := d.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Contains(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("sso:denylist:jti-1"))
	ttl := mr.TTL("sso:denylist:jti-1")
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestDenylist_TTLExpiry(t *testing.T) {
	d, mr := newDenylist(t)
	ctx := context.Background()

	require.NoError(t, d.Add(ctx, "jti-1", time.Now().Add(time.Minute)))

	mr.FastForward(2 * time.Minute)

	ok, err := d.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDenylist_SkipsExpired(t *testing.T) {
	d, mr := newDenylist(t)

	require.NoError(t, d.Add(context.Background(), "old", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists("sso:denylist:old"))
}

func TestDenylist_Unavailable(t *testing.T) {
	d, mr := newDenylist(t)
	mr.Close()

	_, err := d.Contains(context.Background(), "jti")
	require.Error(t, err)
}
