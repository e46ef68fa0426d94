package entity

import (
	"context"
	"database/sql"
	"errors"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-entity-sync/keyedcache"
	"github.com/goliatone/go-entity-sync/pagination"
	"github.com/goliatone/go-entity-sync/pkg/logging"
	"github.com/goliatone/go-entity-sync/realtime"
	"github.com/goliatone/go-entity-sync/syncerrors"
)

// Store is the slice of the repository surface the service consumes. Any
// repository.Repository[T] satisfies it.
type Store[T any] interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
	Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error)
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

// Emitter publishes change events after successful writes. *realtime.Server
// satisfies it.
type Emitter interface {
	EmitChange(ev realtime.ChangeEvent) error
}

// Config wires one entity type into the service.
type Config[T any] struct {
	// Kind names the entity type in change events, e.g. "user". Required.
	Kind string
	// Store is the durable source of truth. Required.
	Store Store[T]
	// Cache is the keyed read-through cache. Required.
	Cache *keyedcache.KeyedCache[T]
	// Pager shapes list requests. Required.
	Pager *pagination.Engine
	// ID extracts the primary id. Required.
	ID func(record T) string
	// Unique maps unique columns to their value extractors, used both for
	// GetByKey store fallbacks and for conflict pre-checks on writes. The
	// map key doubles as the column name and the cache keyspace. Optional.
	Unique map[string]keyedcache.KeyFunc[T]
	// Scope extracts the collection id carried on change events, e.g. a
	// message's thread id. Optional; defaults to the empty scope.
	Scope func(record T) string
	// Populate enriches a freshly loaded record with related sub-entities
	// before it is cached or returned. Optional.
	Populate func(ctx context.Context, record T) (T, error)
	// Payload builds the change-event payload. Optional; defaults to nil
	// payload (subscribers re-read through the service).
	Payload func(record T) map[string]any
	// Emitter receives change events. Optional; without one, writes are
	// silent.
	Emitter Emitter
	// Logger is used for best-effort failures. Optional.
	Logger logging.Logger
}

// Service serves reads cache-first and writes store-first for one entity
// type. Writes invalidate every cache key the entity was stored under before
// returning, so at most one stale read window exists: a read racing the
// write sees either the old committed value or a cache miss, never "store
// new, cache old".
type Service[T any] struct {
	cfg Config[T]
	log logging.Logger
}

// New validates cfg and constructs a Service.
func New[T any](cfg Config[T]) (*Service[T], error) {
	switch {
	case cfg.Kind == "":
		return nil, syncerrors.New(syncerrors.KindValidation, "entity: Kind is required")
	case cfg.Store == nil:
		return nil, syncerrors.New(syncerrors.KindValidation, "entity: Store is required")
	case cfg.Cache == nil:
		return nil, syncerrors.New(syncerrors.KindValidation, "entity: Cache is required")
	case cfg.Pager == nil:
		return nil, syncerrors.New(syncerrors.KindValidation, "entity: Pager is required")
	case cfg.ID == nil:
		return nil, syncerrors.New(syncerrors.KindValidation, "entity: ID extractor is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Service[T]{cfg: cfg, log: log}, nil
}

// GetByID returns the entity, cache first, falling back to the store and
// filling the cache on a miss.
func (s *Service[T]) GetByID(ctx context.Context, id string) (T, error) {
	return s.cfg.Cache.GetOrLoad(ctx, keyedcache.PrimaryKeyspace, id, func(ctx context.Context) (T, error) {
		record, err := s.cfg.Store.GetByID(ctx, id)
		if err != nil {
			var zero T
			return zero, s.storeErr(err, "get %s %q", s.cfg.Kind, id)
		}
		return s.populate(ctx, record)
	})
}

// GetByKey returns the entity addressed by a secondary unique column, e.g.
// GetByKey(ctx, "email", "a@x.com"). The column must appear in Config.Unique.
func (s *Service[T]) GetByKey(ctx context.Context, column, value string) (T, error) {
	var zero T
	if _, ok := s.cfg.Unique[column]; !ok {
		return zero, syncerrors.Newf(syncerrors.KindValidation, "entity: %q is not a unique key of %s", column, s.cfg.Kind)
	}
	return s.cfg.Cache.GetOrLoad(ctx, column, value, func(ctx context.Context) (T, error) {
		record, err := s.cfg.Store.Get(ctx, byColumn(column, value))
		if err != nil {
			return zero, s.storeErr(err, "get %s by %s %q", s.cfg.Kind, column, value)
		}
		return s.populate(ctx, record)
	})
}

// List serves a shaped page of entities. List results are never cached;
// collections change too often for entry-level caching to pay off, and
// subscribers patch them via change events instead.
func (s *Service[T]) List(ctx context.Context, req pagination.Request, filter ...repository.SelectCriteria) (pagination.Result[T], error) {
	res, err := pagination.Paginate[T](ctx, s.cfg.Pager, s.cfg.Store, req, filter...)
	if err != nil {
		if syncerrors.IsValidation(err) {
			return res, err
		}
		return res, s.storeErr(err, "list %s", s.cfg.Kind)
	}
	return res, nil
}

// Create inserts the record, write-through caches it, and emits a created
// event. Unique columns are pre-checked so the common collision surfaces as
// a Conflict instead of a raw constraint error; the store constraint remains
// the final authority for the race window.
func (s *Service[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	if err := s.checkUnique(ctx, record, nil); err != nil {
		return zero, err
	}

	created, err := s.cfg.Store.Create(ctx, record)
	if err != nil {
		return zero, s.storeErr(err, "create %s", s.cfg.Kind)
	}
	created, err = s.populate(ctx, created)
	if err != nil {
		return zero, err
	}

	// A freshly created record cannot be stale, so write-through instead of
	// forcing the next reader to miss.
	if err := s.cfg.Cache.Set(ctx, created); err != nil {
		s.log.Warn("entity: cache fill after create failed", "kind", s.cfg.Kind, "err", err)
	}

	s.emit(realtime.OpCreated, created)
	return created, nil
}

// Update loads the current record from the store, applies mutate to it,
// persists the result, and invalidates every cache key the entity was
// stored under. mutate receives the fresh store value, so delta-style merges
// (set union and difference against the previous value) compose correctly
// even when the cache is stale or empty.
func (s *Service[T]) Update(ctx context.Context, id string, mutate func(current T) (T, error)) (T, error) {
	var zero T

	current, err := s.cfg.Store.GetByID(ctx, id)
	if err != nil {
		return zero, s.storeErr(err, "get %s %q", s.cfg.Kind, id)
	}

	next, err := mutate(current)
	if err != nil {
		return zero, err
	}
	if got := s.cfg.ID(next); got != id {
		return zero, syncerrors.Newf(syncerrors.KindValidation, "entity: mutate changed id %q to %q", id, got)
	}

	if err := s.checkUnique(ctx, next, &current); err != nil {
		return zero, err
	}

	updated, err := s.cfg.Store.Update(ctx, next)
	if err != nil {
		return zero, s.storeErr(err, "update %s %q", s.cfg.Kind, id)
	}

	// Invalidate, never patch: cached copies may carry joined or derived
	// fields the update did not touch. Old secondary keys (e.g. the previous
	// username) are evicted through the cache's reverse index.
	if err := s.cfg.Cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("entity: cache invalidate after update failed", "kind", s.cfg.Kind, "id", id, "err", err)
	}

	s.emit(realtime.OpUpdated, updated)
	return updated, nil
}

// Delete removes the record and evicts every cache key it was stored under.
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	record, err := s.cfg.Store.GetByID(ctx, id)
	if err != nil {
		return s.storeErr(err, "get %s %q", s.cfg.Kind, id)
	}

	if err := s.cfg.Store.Delete(ctx, record); err != nil {
		return s.storeErr(err, "delete %s %q", s.cfg.Kind, id)
	}

	if err := s.cfg.Cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("entity: cache invalidate after delete failed", "kind", s.cfg.Kind, "id", id, "err", err)
	}

	s.emit(realtime.OpDeleted, record)
	return nil
}

// checkUnique rejects the write when another record already owns one of the
// unique column values. previous, when set, limits the check to columns
// whose value actually changed.
func (s *Service[T]) checkUnique(ctx context.Context, record T, previous *T) error {
	id := s.cfg.ID(record)
	for column, fn := range s.cfg.Unique {
		value, ok := fn(record)
		if !ok || value == "" {
			continue
		}
		if previous != nil {
			if prev, ok := fn(*previous); ok && prev == value {
				continue
			}
		}

		owner, err := s.cfg.Store.Get(ctx, byColumn(column, value))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return s.storeErr(err, "check %s %s %q", s.cfg.Kind, column, value)
		}
		if s.cfg.ID(owner) != id {
			return syncerrors.Newf(syncerrors.KindConflict, "%s with %s %q already exists", s.cfg.Kind, column, value)
		}
	}
	return nil
}

func (s *Service[T]) populate(ctx context.Context, record T) (T, error) {
	if s.cfg.Populate == nil {
		return record, nil
	}
	return s.cfg.Populate(ctx, record)
}

// emit publishes a change event. Best effort: a write's success never
// depends on delivery.
func (s *Service[T]) emit(op realtime.Op, record T) {
	if s.cfg.Emitter == nil {
		return
	}

	ev := realtime.ChangeEvent{
		EntityType: s.cfg.Kind,
		Op:         op,
		EntityID:   s.cfg.ID(record),
	}
	if s.cfg.Scope != nil {
		ev.ScopeID = s.cfg.Scope(record)
	}
	if s.cfg.Payload != nil {
		ev.Payload = s.cfg.Payload(record)
	}

	if err := s.cfg.Emitter.EmitChange(ev); err != nil {
		s.log.Warn("entity: change event dropped", "event", ev.Name(), "id", ev.EntityID, "err", err)
	}
}

// storeErr classifies repository failures into the service taxonomy.
func (s *Service[T]) storeErr(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return syncerrors.Wrapf(syncerrors.KindNotFound, err, format, args...)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, sql.ErrConnDone):
		return syncerrors.Wrapf(syncerrors.KindTransientStore, err, format, args...)
	default:
		return syncerrors.Wrapf(syncerrors.KindUnknown, err, format, args...)
	}
}

func byColumn(column, value string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ?", bun.Ident(column), value)
	}
}
