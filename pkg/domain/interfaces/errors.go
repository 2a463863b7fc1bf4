package interfaces

import "errors"

// Sentinel errors shared by all backend implementations of the store
// capabilities, so callers can branch with errors.Is regardless of which
// backend is configured.
var (
	// ErrCacheMiss is returned by CacheStore.Get when no live entry exists
	ErrCacheMiss = errors.New("cache miss")

	// ErrRecordNotFound is returned by DurableStore lookups for unknown records
	ErrRecordNotFound = errors.New("record not found")

	// ErrBackendUnavailable marks a backend that is down or timed out.
	// The retrieval engine absorbs it into a degraded response.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrEmbeddingFailed marks a failed embedding computation
	ErrEmbeddingFailed = errors.New("embedding failed")
)
