// Package keyedcache implements a read-through cache for entities that are
// addressable by more than one unique key.
//
// # Overview
//
// An entity has a primary id plus zero or more alternate unique attributes
// (email, username, ...). Each attribute is a keyspace; the cache stores the
// same value under every applicable key and keeps a reverse index from the
// primary id to the full set of keys ever written. Invalidation resolves
// that set and deletes all of it, which is what makes a secondary-key rename
// safe: the key derived from the old value is evicted along with the rest,
// instead of lingering until TTL.
//
// # Invalidation contract
//
//   - Invalidate after the store write commits, never before.
//   - Invalidate, don't patch: a changed entity may carry derived or joined
//     fields the cache cannot recompute, so the entry is dropped and the
//     next read repopulates through the loader.
//   - TTL expiry is passive. Expired entries leave stale reverse-index
//     entries behind; those only cause a redundant delete-of-nothing later.
//
// # Failure semantics
//
// The cache is a performance optimization, never a source of truth. Backend
// errors on Get degrade to a miss, backend errors on Set degrade to
// "loaded but not cached", and GetBulk never fails on partial misses.
package keyedcache
