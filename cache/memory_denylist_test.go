package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenylist(t *testing.T) {
	d := cache.NewMemoryDenylist()
	defer d.Stop()

	ctx := context.Background()

	require.NoError(t, d.Add(ctx, "jti-1", time.Now().Add(time.Hour)))

	ok, err := d.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Contains(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDenylist_Expiry(t *testing.T) {
	d := cache.NewMemoryDenylist()
	defer d.Stop()

	ctx := context.Background()

	require.NoError(t, d.Add(ctx, "past", time.Now().Add(-time.Second)))
	assert.Zero(t, d.Len())

	require.NoError(t, d.Add(ctx, "short", time.Now().Add(50*time.Millisecond)))

	assert.Eventually(t, func() bool {
		ok, _ := d.Contains(ctx, "short")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
