// Package paging parses pagination query parameters and shapes paginated responses.
package paging

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params is a validated page request
type Params struct {
	Page     int
	PageSize int
	Offset   int
}

// Limit returns the number of rows to fetch
func (p Params) Limit() int {
	return p.PageSize
}

// Parse reads page and page_size from the query string.
// limit and offset are accepted as aliases; an explicit offset wins over page.
func Parse(c *gin.Context) (Params, error) {
	page, err := intParam(c, "page", 1)
	if err != nil {
		return Params{}, err
	}
	if page < 1 {
		return Params{}, apierr.Invalid("page", "must be at least 1")
	}

	pageSizeKey := "page_size"
	if _, ok := c.GetQuery(pageSizeKey); !ok {
		if _, ok := c.GetQuery("limit"); ok {
			pageSizeKey = "limit"
		}
	}
	pageSize, err := intParam(c, pageSizeKey, DefaultPageSize)
	if err != nil {
		return Params{}, err
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return Params{}, apierr.Invalid(pageSizeKey, "must be between 1 and %d", MaxPageSize)
	}

	p := Params{Page: page, PageSize: pageSize, Offset: (page - 1) * pageSize}

	if _, ok := c.GetQuery("offset"); ok {
		offset, err := intParam(c, "offset", 0)
		if err != nil {
			return Params{}, err
		}
		if offset < 0 {
			return Params{}, apierr.Invalid("offset", "must not be negative")
		}
		p.Offset = offset
		p.Page = offset/pageSize + 1
	}
	return p, nil
}

func intParam(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Invalid(key, "must be an integer")
	}
	return v, nil
}

// Pages returns ceil(total/pageSize), or 0 when there are no rows
func Pages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// Result is the envelope for paginated listings
type Result[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}

// NewResult builds the envelope; a nil items slice is encoded as an empty list
func NewResult[T any](items []T, total int64, p Params) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Items:    items,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Pages:    Pages(total, p.PageSize),
	}
}
