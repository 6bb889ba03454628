package listview

import (
	"net/url"
	"strconv"
)

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 25

// Pagination is the current page window and the totals from the last
// successful fetch.
type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// Clamp bounds page to [1, TotalPages]. Before the first fetch TotalPages is
// unknown and only the lower bound applies.
func (p Pagination) Clamp(page int) int {
	if p.TotalPages > 0 && page > p.TotalPages {
		page = p.TotalPages
	}
	return max(page, 1)
}

// Query is what a list fetch is asked for.
type Query struct {
	Filters Filters
	Page    int
	Limit   int
}

// Values serializes the filters plus page and limit.
func (q Query) Values() url.Values {
	v := q.Filters.Values()
	v.Set("page", strconv.Itoa(max(q.Page, 1)))
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	v.Set("limit", strconv.Itoa(limit))
	return v
}
