package pagination

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"

	"github.com/goliatone/go-entity-sync/syncerrors"
)

type row struct {
	ID        string
	CreatedAt time.Time
}

// fakeLister returns pre-sliced pages: the engine issues one List call per
// Paginate, so tests choose what the store would have returned and assert on
// the shaping around it.
type fakeLister struct {
	items []row
	total int
	err   error
	calls int
}

func (f *fakeLister) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]row, int, error) {
	f.calls++
	return f.items, f.total, f.err
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func makeRows(n int, start time.Time) []row {
	rows := make([]row, n)
	for i := range rows {
		rows[i] = row{
			ID:        fmt.Sprintf("r-%02d", i),
			CreatedAt: start.Add(time.Duration(i) * time.Second),
		}
	}
	return rows
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero default limit", mutate: func(c *Config) { c.DefaultLimit = 0 }, wantErr: true},
		{name: "max below default", mutate: func(c *Config) { c.MaxLimit = 5 }, wantErr: true},
		{name: "empty default sort", mutate: func(c *Config) { c.DefaultSort = "" }, wantErr: true},
		{name: "empty allow-list", mutate: func(c *Config) { c.SortFields = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	e := newEngine(t)

	got, err := e.Normalize(Request{})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	want := Request{Limit: 10, Page: 1, SortBy: "created_at", SortOrder: OrderDesc}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestNormalize_ClampsLimit(t *testing.T) {
	e := newEngine(t)

	got, err := e.Normalize(Request{Limit: 5000})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.Limit != 100 {
		t.Errorf("Limit = %d, want clamp to 100", got.Limit)
	}

	got, err = e.Normalize(Request{Limit: -3})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.Limit != 10 {
		t.Errorf("Limit = %d, want default 10", got.Limit)
	}
}

func TestNormalize_CamelCaseSortBy(t *testing.T) {
	e := newEngine(t)

	got, err := e.Normalize(Request{SortBy: "createdAt"})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.SortBy != "created_at" {
		t.Errorf("SortBy = %q, want created_at", got.SortBy)
	}
}

func TestNormalize_RejectsUnknownSortBy(t *testing.T) {
	e := newEngine(t)

	_, err := e.Normalize(Request{SortBy: "password"})
	if !syncerrors.IsValidation(err) {
		t.Errorf("Normalize() error = %v, want a validation error", err)
	}
}

func TestNormalize_RejectsBadSortOrder(t *testing.T) {
	e := newEngine(t)

	_, err := e.Normalize(Request{SortOrder: "sideways"})
	if !syncerrors.IsValidation(err) {
		t.Errorf("Normalize() error = %v, want a validation error", err)
	}
}

func TestPaginate_OffsetFirstPage(t *testing.T) {
	// 25 matching rows, page size 10: page 1 has 10 items and more to come.
	e := newEngine(t)
	all := makeRows(25, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	src := &fakeLister{items: all[:10], total: 25}

	res, err := Paginate[row](context.Background(), e, src, Request{Limit: 10, Page: 1})
	if err != nil {
		t.Fatalf("Paginate() error: %v", err)
	}

	if len(res.Items) != 10 {
		t.Errorf("len(Items) = %d, want 10", len(res.Items))
	}
	if !res.Pagination.HasNext {
		t.Error("HasNext = false, want true")
	}
	if res.Pagination.Total != 25 || res.Pagination.Page != 1 {
		t.Errorf("Total/Page = %d/%d, want 25/1", res.Pagination.Total, res.Pagination.Page)
	}
	if src.calls != 1 {
		t.Errorf("List called %d times, want 1", src.calls)
	}
}

func TestPaginate_OffsetLastPage(t *testing.T) {
	// Page 3 of 25 rows at limit 10 holds the trailing 5, with nothing after.
	e := newEngine(t)
	all := makeRows(25, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	src := &fakeLister{items: all[20:], total: 25}

	res, err := Paginate[row](context.Background(), e, src, Request{Limit: 10, Page: 3})
	if err != nil {
		t.Fatalf("Paginate() error: %v", err)
	}

	if len(res.Items) != 5 {
		t.Errorf("len(Items) = %d, want 5", len(res.Items))
	}
	if res.Pagination.HasNext {
		t.Error("HasNext = true, want false on the last page")
	}
	if res.Pagination.Next != "" {
		t.Errorf("Next = %q, want empty on the last page", res.Pagination.Next)
	}
}

func TestPaginate_CursorFullPageThenRemainder(t *testing.T) {
	// 3 rows with distinct ascending timestamps, limit 2: the first page is
	// full and exposes a cursor at row 2; the second page holds the rest.
	e := newEngine(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := makeRows(3, base)

	src := &fakeLister{items: rows[:2], total: 0}
	res, err := Paginate[row](context.Background(), e, src, Request{Limit: 2, SortOrder: OrderAsc})
	if err != nil {
		t.Fatalf("Paginate() error: %v", err)
	}
	if len(res.Items) != 2 || !res.Pagination.HasNext {
		t.Fatalf("first page = %d items hasNext=%v, want 2 items hasNext=true", len(res.Items), res.Pagination.HasNext)
	}

	cursor := ParseCursor(res.Pagination.Next)
	if cursor.Value != rows[1].CreatedAt.UTC().Format(cursorTimeLayout) {
		t.Errorf("cursor value = %q, want row 2's timestamp", cursor.Value)
	}
	if cursor.ID != rows[1].ID {
		t.Errorf("cursor id = %q, want %q", cursor.ID, rows[1].ID)
	}
	if res.Pagination.Total != 0 || res.Pagination.Page != 0 {
		t.Errorf("cursor mode must not report Total/Page, got %d/%d", res.Pagination.Total, res.Pagination.Page)
	}

	src = &fakeLister{items: rows[2:], total: 0}
	res, err = Paginate[row](context.Background(), e, src, Request{Limit: 2, SortOrder: OrderAsc, Next: res.Pagination.Next})
	if err != nil {
		t.Fatalf("Paginate() error: %v", err)
	}
	if len(res.Items) != 1 {
		t.Errorf("second page = %d items, want 1", len(res.Items))
	}
	if res.Pagination.HasNext {
		t.Error("HasNext = true on a short page, want false")
	}
	if res.Pagination.Next != "" {
		t.Errorf("Next = %q on a short page, want empty", res.Pagination.Next)
	}
}

func TestPaginate_CursorWalkCoversEverything(t *testing.T) {
	// Walking cursors until hasNext is false must yield every row exactly
	// once. The fake applies the decoded cursor the way the store would.
	e := newEngine(t)
	all := makeRows(23, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	limit := 5

	next := ""
	seen := map[string]int{}
	for pages := 0; ; pages++ {
		if pages > len(all) {
			t.Fatal("cursor walk did not terminate")
		}

		remaining := afterCursor(all, ParseCursor(next))
		page := remaining
		if len(page) > limit {
			page = page[:limit]
		}
		// The opening offset request needs the real total for its HasNext;
		// every cursor-mode follow-up discards it.
		src := &fakeLister{items: page, total: len(all)}

		req := Request{Limit: limit, SortOrder: OrderAsc, Next: next}
		if next == "" {
			req.Page = 1
		}
		res, err := Paginate[row](context.Background(), e, src, req)
		if err != nil {
			t.Fatalf("Paginate() error: %v", err)
		}
		for _, r := range res.Items {
			seen[r.ID]++
		}
		if !res.Pagination.HasNext {
			break
		}
		next = res.Pagination.Next
	}

	if len(seen) != len(all) {
		t.Errorf("walk covered %d distinct rows, want %d", len(seen), len(all))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("row %s seen %d times, want 1", id, count)
		}
	}
}

// afterCursor mimics the composite (sortKey, id) predicate the criteria
// encode, over rows sorted ascending.
func afterCursor(all []row, c Cursor) []row {
	if c.IsZero() {
		return all
	}
	sorted := append([]row(nil), all...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	var out []row
	for _, r := range sorted {
		key := r.CreatedAt.UTC().Format(cursorTimeLayout)
		if key > c.Value || (key == c.Value && r.ID > c.ID) {
			out = append(out, r)
		}
	}
	return out
}

func TestPaginate_ValidationErrorBeforeStore(t *testing.T) {
	e := newEngine(t)
	src := &fakeLister{}

	_, err := Paginate[row](context.Background(), e, src, Request{SortBy: "password"})
	if !syncerrors.IsValidation(err) {
		t.Fatalf("Paginate() error = %v, want a validation error", err)
	}
	if src.calls != 0 {
		t.Errorf("List called %d times for an invalid request, want 0", src.calls)
	}
}

func TestPaginate_StoreErrorPropagates(t *testing.T) {
	e := newEngine(t)
	wantErr := errors.New("store down")
	src := &fakeLister{err: wantErr}

	_, err := Paginate[row](context.Background(), e, src, Request{Page: 1})
	if !errors.Is(err, wantErr) {
		t.Errorf("Paginate() error = %v, want %v", err, wantErr)
	}
}
