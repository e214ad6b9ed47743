package cache

import "errors"

var (
	// ErrCacheMiss indicates the requested key was not found in any tier.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable indicates the volatile tier is unreachable.
	// Callers must treat it as a soft miss, never as a hard failure.
	ErrCacheUnavailable = errors.New("volatile cache unavailable")

	// ErrInvalidEntry indicates a cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrInvalidRequest indicates malformed caller input, rejected before
	// any tier is touched.
	ErrInvalidRequest = errors.New("invalid cache request")

	// ErrNoSource indicates the cache type has no upstream source to fetch
	// from; a double-tier miss for such a type is a plain ErrCacheMiss.
	ErrNoSource = errors.New("no upstream source for cache type")
)
