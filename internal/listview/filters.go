// Package listview implements the list screen controller shared by every
// admin screen: filter and pagination state, a list+stats fetch that only
// commits its latest invocation, row selection with bulk actions, single
// status transitions, a detail loader and an optional polling refresh.
package listview

import (
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Filters is an immutable set of filter values keyed by query parameter
// name. The zero value is empty and ready to use.
type Filters struct {
	m map[string]string
}

// NewFilters builds Filters from a map, dropping empty values.
func NewFilters(values map[string]string) Filters {
	var f Filters
	for k, v := range values {
		f = f.With(k, v)
	}
	return f
}

// FiltersFromQuery picks the allowed keys out of a query string.
func FiltersFromQuery(q url.Values, keys ...string) Filters {
	var f Filters
	for _, k := range keys {
		f = f.With(k, q.Get(k))
	}
	return f
}

// With returns a copy with key set to value. A blank value removes the key
// so it is left out of the query instead of being sent empty. Values are
// otherwise passed through unvalidated.
func (f Filters) With(key, value string) Filters {
	next := Filters{m: maps.Clone(f.m)}
	if strings.TrimSpace(value) == "" {
		delete(next.m, key)
		return next
	}
	if next.m == nil {
		next.m = make(map[string]string)
	}
	next.m[key] = value
	return next
}

// Get returns the value for key, or "" when unset.
func (f Filters) Get(key string) string {
	return f.m[key]
}

// Len returns the number of set filters.
func (f Filters) Len() int {
	return len(f.m)
}

// Keys returns the set keys in sorted order.
func (f Filters) Keys() []string {
	return slices.Sorted(maps.Keys(f.m))
}

// Equal reports whether both sets hold the same key/value pairs.
func (f Filters) Equal(o Filters) bool {
	return maps.Equal(f.m, o.m)
}

// Values serializes the set filters.
func (f Filters) Values() url.Values {
	v := make(url.Values, len(f.m))
	for k, val := range f.m {
		v.Set(k, val)
	}
	return v
}
