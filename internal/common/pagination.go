package common

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination holds the normalised page window for list endpoints.
type Pagination struct {
	Page  int32 `json:"page"`
	Limit int32 `json:"limit"`
}

// Offset converts the page window into a row offset.
func (p Pagination) Offset() int32 {
	return (p.Page - 1) * p.Limit
}

// ParsePagination extracts page and limit query parameters, clamping the
// limit so a single request cannot walk the whole table.
func ParsePagination(r *http.Request) Pagination {
	p := Pagination{Page: 1, Limit: defaultPageSize}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.Page = int32(v)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		p.Limit = int32(v)
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}
