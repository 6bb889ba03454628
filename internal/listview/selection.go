package listview

import (
	"maps"
	"slices"
)

// Selection is a set of selected row ids. It is not safe for concurrent use;
// Controller guards its own copy.
type Selection struct {
	ids map[string]struct{}
}

// Toggle flips one id.
func (s *Selection) Toggle(id string) {
	s.Set(id, !s.Has(id))
}

// Set selects or deselects one id.
func (s *Selection) Set(id string, on bool) {
	if !on {
		delete(s.ids, id)
		return
	}
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// SelectAll replaces the selection with the visible ids.
func (s *Selection) SelectAll(visible []string) {
	s.ids = make(map[string]struct{}, len(visible))
	for _, id := range visible {
		s.ids[id] = struct{}{}
	}
}

// AllSelected reports whether every visible id is selected. An empty page is
// never "all selected".
func (s *Selection) AllSelected(visible []string) bool {
	if len(visible) == 0 {
		return false
	}
	for _, id := range visible {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = nil
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids in sorted order.
func (s *Selection) IDs() []string {
	return slices.Sorted(maps.Keys(s.ids))
}
