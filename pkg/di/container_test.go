package di

import (
	"context"
	"database/sql"
	"testing"

	repository "github.com/goliatone/go-repository-bun"

	"github.com/goliatone/go-entity-sync/cache"
	"github.com/goliatone/go-entity-sync/entity"
	"github.com/goliatone/go-entity-sync/keyedcache"
	"github.com/goliatone/go-entity-sync/model"
	"github.com/goliatone/go-entity-sync/pagination"
)

type stubThreadStore struct {
	threads map[string]model.Thread
}

func (s *stubThreadStore) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (model.Thread, error) {
	if th, ok := s.threads[id]; ok {
		return th, nil
	}
	return model.Thread{}, sql.ErrNoRows
}

func (s *stubThreadStore) Get(ctx context.Context, criteria ...repository.SelectCriteria) (model.Thread, error) {
	return model.Thread{}, sql.ErrNoRows
}

func (s *stubThreadStore) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]model.Thread, int, error) {
	out := make([]model.Thread, 0, len(s.threads))
	for _, th := range s.threads {
		out = append(out, th)
	}
	return out, len(out), nil
}

func (s *stubThreadStore) Create(ctx context.Context, record model.Thread, criteria ...repository.InsertCriteria) (model.Thread, error) {
	s.threads[record.ID] = record
	return record, nil
}

func (s *stubThreadStore) Update(ctx context.Context, record model.Thread, criteria ...repository.UpdateCriteria) (model.Thread, error) {
	s.threads[record.ID] = record
	return record, nil
}

func (s *stubThreadStore) Delete(ctx context.Context, record model.Thread) error {
	delete(s.threads, record.ID)
	return nil
}

func TestNewContainerWithDefaults(t *testing.T) {
	c, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() error: %v", err)
	}

	if c.CacheService() == nil {
		t.Error("CacheService() should not be nil")
	}
	if c.KeySerializer() == nil {
		t.Error("KeySerializer() should not be nil")
	}
	if c.Pager() == nil {
		t.Error("Pager() should not be nil")
	}
	if c.Logger() == nil {
		t.Error("Logger() should not be nil")
	}
	want := cache.DefaultConfig()
	got := c.CacheConfig()
	if got.Capacity != want.Capacity || got.TTL != want.TTL {
		t.Errorf("CacheConfig() = %+v, want defaults", got)
	}
}

func TestNewContainer_RejectsInvalidConfig(t *testing.T) {
	bad := cache.DefaultConfig()
	bad.Capacity = 0
	if _, err := NewContainer(bad, pagination.DefaultConfig(), nil); err == nil {
		t.Error("expected error for invalid cache config")
	}

	badPage := pagination.DefaultConfig()
	badPage.SortFields = nil
	if _, err := NewContainer(cache.DefaultConfig(), badPage, nil); err == nil {
		t.Error("expected error for invalid pagination config")
	}
}

func TestNewEntityService_WiresSharedComponents(t *testing.T) {
	c, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() error: %v", err)
	}

	store := &stubThreadStore{threads: map[string]model.Thread{
		"t-1": {ID: "t-1", EventID: "e-1"},
	}}

	svc, err := NewEntityService(c, entity.Config[model.Thread]{
		Kind:  "thread",
		Store: store,
		ID:    func(th model.Thread) string { return th.ID },
		Scope: func(th model.Thread) string { return th.Scope() },
	}, keyedcache.Config[model.Thread]{
		Name: "thread",
		ID:   func(th model.Thread) string { return th.ID },
	})
	if err != nil {
		t.Fatalf("NewEntityService() error: %v", err)
	}

	got, err := svc.GetByID(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.EventID != "e-1" {
		t.Errorf("GetByID() = %+v, want EventID=e-1", got)
	}

	// Cached under the container's shared cache service.
	key := c.KeySerializer().SerializeKey("thread", "id", "t-1")
	if _, ok := c.CacheService().Get(context.Background(), key); !ok {
		t.Error("read-through should populate the shared cache service")
	}
}

func TestNewKeyedCache_UsesSharedService(t *testing.T) {
	c, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() error: %v", err)
	}

	kc, err := NewKeyedCache(c, keyedcache.Config[model.Thread]{
		Name: "thread",
		ID:   func(th model.Thread) string { return th.ID },
	})
	if err != nil {
		t.Fatalf("NewKeyedCache() error: %v", err)
	}

	if err := kc.Set(context.Background(), model.Thread{ID: "t-9"}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	key := c.KeySerializer().SerializeKey("thread", "id", "t-9")
	if _, ok := c.CacheService().Get(context.Background(), key); !ok {
		t.Error("keyed cache writes should land in the shared cache service")
	}
}
