package cache

import "context"

// KeySerializer builds a cache key from a namespace + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(namespace string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from
// the source of truth on a miss. It is an alias so that backend packages can
// satisfy CacheService without importing this one.
type FetchFn = func(ctx context.Context) (any, error)

// CacheService is the port every cache backend implements. Errors from the
// backend are advisory: callers must treat a failed cache call as a miss and
// fall through to the source of truth, never as a hard failure.
type CacheService interface {
	// Get returns the cached value for key, if present and not expired.
	Get(ctx context.Context, key string) (any, bool)
	// Set stores value under key using the backend's configured TTL.
	Set(ctx context.Context, key string, value any) error
	// GetOrFetch returns the cached value for key, calling fetch and
	// caching the result on a miss. Concurrent misses for the same key may
	// be coalesced by the backend, but callers must not rely on it.
	GetOrFetch(ctx context.Context, key string, fetch FetchFn) (any, error)
	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every entry whose key starts with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Get is a type-safe wrapper around CacheService.Get. A cached value of a
// different type counts as a miss.
func Get[T any](ctx context.Context, service CacheService, key string) (T, bool) {
	v, ok := service.Get(ctx, key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// GetOrFetch is a type-safe wrapper around CacheService.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		// A value of another type was cached under our key; bypass it.
		return fetch(ctx)
	}
	return typed, nil
}
