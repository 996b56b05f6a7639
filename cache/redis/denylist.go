// Package redis implements the durable denylist on Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/CoachCoe/polkadot-sso/cache"
	"github.com/redis/go-redis/v9"
)

// Denylist stores one key per revoked jti with a TTL equal to the token's remaining lifetime.
type Denylist struct {
	client *redis.Client
	prefix string
}

// NewDenylist creates a new [Denylist]. prefix namespaces the keys.
func NewDenylist(client *redis.Client, prefix string) *Denylist {
	return &Denylist{
		client: client,
		prefix: prefix,
	}
}

func (d *Denylist) key(jti string) string {
	return fmt.Sprintf("%s:denylist:%s", d.prefix, jti)
}

func (d *Denylist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := d.client.Set(ctx, d.key(jti), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("failed to add token to denylist: %w", err)
	}

	return nil
}

func (d *Denylist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check denylist: %w", err)
	}

	return n > 0, nil
}

// Ping checks connectivity, used by the health endpoint.
func (d *Denylist) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

var _ cache.Denylist = (*Denylist)(nil)
