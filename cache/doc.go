// Package cache provides the caching port and key serialization used by the
// keyed entity caches.
//
// # Overview
//
// This package exports two main interfaces and their default implementations:
//
//   - CacheService: A generic caching interface for read-through operations
//   - KeySerializer: Builds stable cache keys from a namespace and arguments
//
// The cache package is deliberately backend-agnostic; the default backend is
// a sturdyc-based in-memory cache constructed via NewCacheService.
//
// # Basic Usage
//
//	serializer := cache.NewDefaultKeySerializer()
//	key := serializer.SerializeKey("user", "id", "user-123")
//
//	user, err := cache.GetOrFetch(ctx, cacheService, key, func(ctx context.Context) (User, error) {
//		return store.GetByID(ctx, "user-123")
//	})
//
// # Error Semantics
//
// Caching here is an optimization, never a dependency for correctness. Every
// CacheService error must be treated by callers as a miss: fall through to
// the source of truth and attempt a refill. No caller may fail a read or a
// write because the cache was unavailable.
//
// # Key Serialization Strategy
//
// The default serializer handles the shapes that occur in entity cache keys
// (strings, numbers, slices, small filter structs) deterministically and
// falls back to JSON for anything else. Keys are segmented with
// KeySeparator, which the keyed cache relies on for prefix invalidation.
//
// # See Also
//
// The keyedcache package composes this port into a multi-key read-through
// cache with reverse-index invalidation.
package cache
