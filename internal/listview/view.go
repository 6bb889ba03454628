package listview

import "time"

// Status is the fetch state of a screen.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// View is a point-in-time copy of a controller's state, ready to render.
// Exactly one of ShowSpinner, ShowError, ShowEmpty and ShowTable is true.
type View[T, S any] struct {
	Screen      string
	Status      Status
	Items       []T
	Stats       S
	HasStats    bool
	StatsError  string
	Error       string
	Filters     Filters
	Pagination  Pagination
	Selected    []string
	AllSelected bool
	FetchedAt   time.Time
	Generation  uint64
}

// ShowSpinner is true before the first fetch commits and while a fetch runs.
func (v View[T, S]) ShowSpinner() bool {
	return v.Status == StatusIdle || v.Status == StatusLoading
}

// ShowError is true when the last fetch failed.
func (v View[T, S]) ShowError() bool {
	return v.Status == StatusError
}

// ShowEmpty is true when the last fetch succeeded with no rows.
func (v View[T, S]) ShowEmpty() bool {
	return v.Status == StatusSuccess && len(v.Items) == 0
}

// ShowTable is true when the last fetch succeeded with rows.
func (v View[T, S]) ShowTable() bool {
	return v.Status == StatusSuccess && len(v.Items) > 0
}

// IsSelected reports whether id is in the selection.
func (v View[T, S]) IsSelected(id string) bool {
	for _, s := range v.Selected {
		if s == id {
			return true
		}
	}
	return false
}
