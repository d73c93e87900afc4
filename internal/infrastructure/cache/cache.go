// Package cache provides the shared result cache used by the idempotency
// manager. The default driver is in-process; a Redis driver lets several
// agent instances behind one device share settled results.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL'd byte store.
type Cache interface {
	// Get returns the cached value for key, or ok=false after expiry.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases any underlying connection.
	Close() error
}
