package keyedcache

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-entity-sync/cache"
	"github.com/goliatone/go-entity-sync/syncerrors"
)

// PrimaryKeyspace is the keyspace every entity is cached under. Secondary
// keyspaces ("email", "username", ...) are configured per entity type.
const PrimaryKeyspace = "id"

// KeyFunc derives a secondary key value from an entity. ok is false when the
// entity has no value for the keyspace (e.g. a user without a username),
// in which case no entry is written for it.
type KeyFunc[T any] func(record T) (value string, ok bool)

// Config describes how a KeyedCache addresses one entity type.
type Config[T any] struct {
	// Name is the cache namespace, e.g. "user". Required.
	Name string
	// ID extracts the primary id. Required.
	ID func(record T) string
	// Keys maps secondary keyspaces to their extractors. Optional.
	Keys map[string]KeyFunc[T]
}

// KeyedCache is a read-through cache for one entity type addressable by a
// primary id plus any number of secondary unique attributes. Every write
// records the full set of keys the entity was stored under in a reverse
// index, so Invalidate evicts keys derived from old field values as well:
// after a username rename, the old-username key is deleted, not just
// overwritten.
type KeyedCache[T any] struct {
	cfg        Config[T]
	svc        cache.CacheService
	serializer cache.KeySerializer

	// reverse index: primary id -> every cache key ever written for it.
	index *xsync.MapOf[string, *keySet]
}

type keySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (k *keySet) add(keys ...string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		k.keys[key] = struct{}{}
	}
}

func (k *keySet) drain() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, 0, len(k.keys))
	for key := range k.keys {
		out = append(out, key)
	}
	k.keys = make(map[string]struct{})
	return out
}

// New constructs a KeyedCache over the given cache service and serializer.
func New[T any](cfg Config[T], svc cache.CacheService, serializer cache.KeySerializer) (*KeyedCache[T], error) {
	if cfg.Name == "" {
		return nil, syncerrors.New(syncerrors.KindValidation, "keyedcache: Name is required")
	}
	if cfg.ID == nil {
		return nil, syncerrors.New(syncerrors.KindValidation, "keyedcache: ID extractor is required")
	}
	if svc == nil {
		return nil, syncerrors.New(syncerrors.KindValidation, "keyedcache: cache service is required")
	}
	if serializer == nil {
		serializer = cache.NewDefaultKeySerializer()
	}

	return &KeyedCache[T]{
		cfg:        cfg,
		svc:        svc,
		serializer: serializer,
		index:      xsync.NewMapOf[string, *keySet](),
	}, nil
}

func (c *KeyedCache[T]) key(keyspace, value string) string {
	return c.serializer.SerializeKey(c.cfg.Name, keyspace, value)
}

// Get returns the entity cached under (keyspace, value), if any. Backend
// failures count as misses.
func (c *KeyedCache[T]) Get(ctx context.Context, keyspace, value string) (T, bool) {
	return cache.Get[T](ctx, c.svc, c.key(keyspace, value))
}

// GetByID returns the entity cached under its primary id, if any.
func (c *KeyedCache[T]) GetByID(ctx context.Context, id string) (T, bool) {
	return c.Get(ctx, PrimaryKeyspace, id)
}

// GetOrLoad returns the entity for (keyspace, value), calling load on a
// miss. A successfully loaded entity is written through under its primary id
// and every configured secondary key, and all of those keys are registered
// in the reverse index. Concurrent misses for the same key may be coalesced
// by the backend; concurrent misses for different keys of the same entity
// load redundantly, which is accepted - the cache is an optimization, not a
// source of truth.
func (c *KeyedCache[T]) GetOrLoad(ctx context.Context, keyspace, value string, load func(ctx context.Context) (T, error)) (T, error) {
	return cache.GetOrFetch(ctx, c.svc, c.key(keyspace, value), func(ctx context.Context) (T, error) {
		record, err := load(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		// Fill sibling keys so the next lookup by any key hits.
		if err := c.Set(ctx, record); err != nil {
			return record, nil // cache errors degrade to "loaded but not cached"
		}
		return record, nil
	})
}

// Set writes the entity under its primary id and every configured secondary
// key, and records all of them in the reverse index for later invalidation.
func (c *KeyedCache[T]) Set(ctx context.Context, record T) error {
	id := c.cfg.ID(record)
	if id == "" {
		return syncerrors.New(syncerrors.KindValidation, "keyedcache: record has empty id")
	}

	keys := make([]string, 0, len(c.cfg.Keys)+1)
	keys = append(keys, c.key(PrimaryKeyspace, id))
	for keyspace, fn := range c.cfg.Keys {
		if value, ok := fn(record); ok && value != "" {
			keys = append(keys, c.key(keyspace, value))
		}
	}

	// Register before writing: a concurrent Invalidate must be able to see
	// keys that are about to hold the value.
	set, _ := c.index.LoadOrStore(id, &keySet{keys: make(map[string]struct{})})
	set.add(keys...)

	var firstErr error
	for _, key := range keys {
		if err := c.svc.Set(ctx, key, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Invalidate removes every cache entry the entity identified by id was ever
// stored under, including keys derived from old values of secondary
// attributes. Entries that already expired delete as a no-op.
func (c *KeyedCache[T]) Invalidate(ctx context.Context, id string) error {
	keys := []string{c.key(PrimaryKeyspace, id)}
	if set, ok := c.index.LoadAndDelete(id); ok {
		keys = append(keys, set.drain()...)
	}

	var firstErr error
	for _, key := range keys {
		if err := c.svc.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetBulk returns the cached entities for the given ids, keyed by id.
// Missing entries are simply absent from the result; GetBulk never fails on
// a partial miss.
func (c *KeyedCache[T]) GetBulk(ctx context.Context, ids []string) map[string]T {
	out := make(map[string]T, len(ids))
	for _, id := range ids {
		if record, ok := c.GetByID(ctx, id); ok {
			out[id] = record
		}
	}
	return out
}

// Name returns the cache namespace.
func (c *KeyedCache[T]) Name() string { return c.cfg.Name }
