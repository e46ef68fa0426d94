package di

import (
	"log/slog"

	"github.com/goliatone/go-entity-sync/cache"
	"github.com/goliatone/go-entity-sync/entity"
	"github.com/goliatone/go-entity-sync/keyedcache"
	"github.com/goliatone/go-entity-sync/pagination"
	"github.com/goliatone/go-entity-sync/pkg/logging"
)

// Container wires the shared singletons: the cache service backing every
// keyed cache, the key serializer, the pagination engine, and the logger.
// Per-entity components are built through the package-level factory
// functions, since Go methods cannot have type parameters.
type Container struct {
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	pager         *pagination.Engine
	logger        logging.Logger
	cacheConfig   cache.Config
}

// NewContainer creates a container from explicit cache and pagination
// configuration. A nil logger falls back to the default text logger.
func NewContainer(cacheCfg cache.Config, pageCfg pagination.Config, logger logging.Logger) (*Container, error) {
	cacheService, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, err
	}

	pager, err := pagination.New(pageCfg)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NewDefaultLogger(slog.LevelInfo)
	}

	return &Container{
		cacheService:  cacheService,
		keySerializer: cache.NewDefaultKeySerializer(),
		pager:         pager,
		logger:        logger,
		cacheConfig:   cacheCfg,
	}, nil
}

// NewContainerWithDefaults creates a container using default cache and
// pagination configuration.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(cache.DefaultConfig(), pagination.DefaultConfig(), nil)
}

// CacheService returns the singleton cache service instance.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Pager returns the singleton pagination engine.
func (c *Container) Pager() *pagination.Engine {
	return c.pager
}

// Logger returns the container's logger.
func (c *Container) Logger() logging.Logger {
	return c.logger
}

// CacheConfig returns a copy of the cache configuration used by this
// container.
func (c *Container) CacheConfig() cache.Config {
	return c.cacheConfig
}

// NewKeyedCache builds a keyed cache for one entity type over the
// container's cache service and serializer.
//
// Example: NewKeyedCache[User](container, userCacheConfig)
func NewKeyedCache[T any](container *Container, cfg keyedcache.Config[T]) (*keyedcache.KeyedCache[T], error) {
	return keyedcache.New(cfg, container.cacheService, container.keySerializer)
}

// NewEntityService builds an entity service, filling in the container's
// shared pager and logger when cfg leaves them unset, and building the keyed
// cache from cacheCfg when cfg.Cache is nil.
func NewEntityService[T any](container *Container, cfg entity.Config[T], cacheCfg keyedcache.Config[T]) (*entity.Service[T], error) {
	if cfg.Cache == nil {
		kc, err := NewKeyedCache[T](container, cacheCfg)
		if err != nil {
			return nil, err
		}
		cfg.Cache = kc
	}
	if cfg.Pager == nil {
		cfg.Pager = container.pager
	}
	if cfg.Logger == nil {
		cfg.Logger = container.logger
	}
	return entity.New(cfg)
}
