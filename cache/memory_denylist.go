package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryDenylist implements Denylist using ttlcache. Entries vanish with their TTL.
// Contents are lost on restart; use the redis backend when that matters.
type MemoryDenylist struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewMemoryDenylist creates the denylist and starts its expiry loop. Call Stop on shutdown.
func NewMemoryDenylist() *MemoryDenylist {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	go c.Start()

	return &MemoryDenylist{cache: c}
}

func (d *MemoryDenylist) Add(_ context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	d.cache.Set(jti, struct{}{}, ttl)

	return nil
}

func (d *MemoryDenylist) Contains(_ context.Context, jti string) (bool, error) {
	return d.cache.Has(jti), nil
}

// Len returns the number of live entries.
func (d *MemoryDenylist) Len() int {
	return d.cache.Len()
}

// Stop ends the expiry loop.
func (d *MemoryDenylist) Stop() {
	d.cache.Stop()
}

var _ Denylist = (*MemoryDenylist)(nil)
