package common

import (
	"net/http"
	"strconv"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads the page and limit query parameters, falling back to
// page 1 and defaultPerPage for missing or invalid values. "per_page" is
// accepted as an alias for "limit".
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	q := r.URL.Query()
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	limit := q.Get("limit")
	if limit == "" {
		limit = q.Get("per_page")
	}
	if l, err := strconv.Atoi(limit); err == nil && l > 0 {
		perPage = l
	}
	return page, perPage
}
