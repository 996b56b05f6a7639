// Package cache provides the revoked-token denylist backends.
package cache

import (
	"context"
	"time"
)

// Denylist records revoked token ids until their natural expiry.
type Denylist interface {
	// Add denies jti until expiresAt. Already expired entries are ignored.
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	// Contains reports whether jti is currently denied.
	Contains(ctx context.Context, jti string) (bool, error)
}
