package interfaces

import (
	"context"
	"time"
)

// CacheStore is the ephemeral key-value tier. Every operation is bounded
// by the implementation's op timeout; when the backend is unreachable the
// implementation returns ErrBackendUnavailable instead of blocking.
type CacheStore interface {
	// Set stores value under key with the given TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the live value for key, or ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists live keys with the given prefix. Used by the promotion
	// sweep; not part of the request path.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
