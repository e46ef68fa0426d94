package pagination

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-entity-sync/syncerrors"
)

// Order is a sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Request is a logical page request. Exactly one of Page (offset mode) or
// Next (cursor mode) is meaningful: a non-empty Next selects cursor mode and
// Page is ignored.
type Request struct {
	Limit     int    `json:"limit"`
	Page      int    `json:"page"`
	Next      string `json:"next"`
	SortBy    string `json:"sortBy"`
	SortOrder Order  `json:"sortOrder"`
}

// CursorMode reports whether the request pages by cursor.
func (r Request) CursorMode() bool { return r.Next != "" }

// Meta is the pagination envelope returned alongside the items. Total and
// Page are only populated in offset mode: cursor mode issues no count query.
type Meta struct {
	Limit   int    `json:"limit"`
	Total   int    `json:"total,omitempty"`
	Page    int    `json:"page,omitempty"`
	HasNext bool   `json:"hasNext"`
	Next    string `json:"next,omitempty"`
}

// Result is one page of items plus its pagination metadata.
type Result[T any] struct {
	Items      []T  `json:"items"`
	Pagination Meta `json:"pagination"`
}

// Config bounds what a page request may ask for.
type Config struct {
	// DefaultLimit applies when the request carries no limit.
	DefaultLimit int
	// MaxLimit is the clamp ceiling for requested limits.
	MaxLimit int
	// DefaultSort is the sort column used when the request names none.
	DefaultSort string
	// SortFields is the allow-list of sortable columns. Cursor mode is only
	// correct over monotonic indexed columns, so the list is closed.
	SortFields []string
}

// DefaultConfig returns the bounds used by most entity services.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 10,
		MaxLimit:     100,
		DefaultSort:  "created_at",
		SortFields:   []string{"created_at", "updated_at"},
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.DefaultLimit < 1 {
		return syncerrors.New(syncerrors.KindValidation, "pagination: DefaultLimit must be at least 1")
	}
	if c.MaxLimit < c.DefaultLimit {
		return syncerrors.New(syncerrors.KindValidation, "pagination: MaxLimit must be >= DefaultLimit")
	}
	if c.DefaultSort == "" {
		return syncerrors.New(syncerrors.KindValidation, "pagination: DefaultSort is required")
	}
	if len(c.SortFields) == 0 {
		return syncerrors.New(syncerrors.KindValidation, "pagination: SortFields allow-list is required")
	}
	return nil
}

// Lister is the slice of the repository adapter the engine consumes: one
// bounded, criteria-driven query whose total is only trusted in offset mode.
type Lister[T any] interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
}

// Engine converts page requests into bounded repository queries and shapes
// the results.
type Engine struct {
	cfg Config
}

// New constructs an Engine with the given bounds.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Normalize applies defaults, clamps the limit into [1, MaxLimit],
// normalizes the sort column to snake_case, and validates the request.
// Unknown sort columns and bad sort orders are Validation errors, raised
// before any store access.
func (e *Engine) Normalize(req Request) (Request, error) {
	if req.Limit <= 0 {
		req.Limit = e.cfg.DefaultLimit
	}
	if req.Limit > e.cfg.MaxLimit {
		req.Limit = e.cfg.MaxLimit
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.SortBy == "" {
		req.SortBy = e.cfg.DefaultSort
	} else {
		req.SortBy = toSnake(req.SortBy)
	}
	if req.SortOrder == "" {
		req.SortOrder = OrderDesc
	}

	sortFields := make([]any, len(e.cfg.SortFields))
	for i, f := range e.cfg.SortFields {
		sortFields[i] = f
	}

	err := validation.ValidateStruct(&req,
		validation.Field(&req.SortBy, validation.Required, validation.In(sortFields...)),
		validation.Field(&req.SortOrder, validation.In(OrderAsc, OrderDesc)),
	)
	if err != nil {
		return req, syncerrors.Wrap(syncerrors.KindValidation, err, "invalid page request")
	}

	return req, nil
}

// criteria builds the repository criteria for a normalized request: sort
// order (with id as tie-breaker), limit, and either an offset or a cursor
// predicate.
func (e *Engine) criteria(req Request) []repository.SelectCriteria {
	dir := "ASC"
	if req.SortOrder == OrderDesc {
		dir = "DESC"
	}
	sortBy := req.SortBy

	crits := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				OrderExpr("? ?", bun.Ident(sortBy), bun.Safe(dir)).
				OrderExpr("? ?", bun.Ident("id"), bun.Safe(dir)).
				Limit(req.Limit)
		},
	}

	if req.CursorMode() {
		cursor := ParseCursor(req.Next)
		crits = append(crits, cursorCriteria(sortBy, cursor, req.SortOrder))
	} else {
		offset := (req.Page - 1) * req.Limit
		crits = append(crits, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Offset(offset)
		})
	}

	return crits
}

func cursorCriteria(sortBy string, cursor Cursor, order Order) repository.SelectCriteria {
	op := ">"
	if order == OrderDesc {
		op = "<"
	}

	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if cursor.ID == "" {
			// Plain single-value cursor: correct only for unique sort keys.
			return q.Where("? "+op+" ?", bun.Ident(sortBy), cursor.Value)
		}
		// Composite (sortKey, id) comparison so rows sharing the boundary
		// sort-key value are neither skipped nor repeated.
		return q.Where(
			"(? "+op+" ?) OR (? = ? AND ? "+op+" ?)",
			bun.Ident(sortBy), cursor.Value,
			bun.Ident(sortBy), cursor.Value,
			bun.Ident("id"), cursor.ID,
		)
	}
}

// Paginate runs one bounded query against src and shapes the page result.
//
// Offset mode uses the adapter-reported total to compute HasNext exactly and
// reports Page and Total. Cursor mode discards the total and infers HasNext
// from a full page; when exactly Limit rows remain this yields a
// false-positive HasNext whose follow-up fetch returns an empty page. That
// approximation is intentional: it avoids a count query per page.
func Paginate[T any](ctx context.Context, e *Engine, src Lister[T], req Request, filter ...repository.SelectCriteria) (Result[T], error) {
	req, err := e.Normalize(req)
	if err != nil {
		return Result[T]{}, err
	}

	crits := make([]repository.SelectCriteria, 0, len(filter)+2)
	crits = append(crits, filter...)
	crits = append(crits, e.criteria(req)...)

	items, total, err := src.List(ctx, crits...)
	if err != nil {
		return Result[T]{}, err
	}

	meta := Meta{Limit: req.Limit}

	if req.CursorMode() {
		meta.HasNext = len(items) == req.Limit
		if meta.HasNext {
			last := items[len(items)-1]
			meta.Next = Cursor{
				Value: extractField(last, req.SortBy),
				ID:    extractField(last, "id"),
			}.String()
		}
	} else {
		totalPages := (total + req.Limit - 1) / req.Limit
		meta.Total = total
		meta.Page = req.Page
		meta.HasNext = req.Page < totalPages
		if meta.HasNext && len(items) > 0 {
			// Informational in offset mode; lets clients switch to cursor
			// paging mid-stream.
			meta.Next = Cursor{
				Value: extractField(items[len(items)-1], req.SortBy),
				ID:    extractField(items[len(items)-1], "id"),
			}.String()
		}
	}

	return Result[T]{Items: items, Pagination: meta}, nil
}
