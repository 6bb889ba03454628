package listview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrDetailClosed is returned by Open when the detail was closed or reopened
// for another id before the fetch finished.
var ErrDetailClosed = errors.New("listview: detail closed")

// Detail loads supplementary data for one row with its own loading flag.
// Closing cancels the in-flight fetch, and a late result from a previous
// open never reaches the current state.
type Detail[T any] struct {
	load   func(ctx context.Context, id string) (T, error)
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	id      string
	open    bool
	loading bool
	value   T
	loaded  bool
	err     error
}

// NewDetail returns a closed Detail that fetches with load.
func NewDetail[T any](load func(ctx context.Context, id string) (T, error), logger *slog.Logger) *Detail[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detail[T]{load: load, logger: logger}
}

// Open shows the detail for id and fetches it. It blocks until the fetch
// finishes and returns its error, or ErrDetailClosed if it was superseded.
func (d *Detail[T]) Open(ctx context.Context, id string) error {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	gen := d.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.id = id
	d.open = true
	d.loading = true
	d.loaded = false
	d.err = nil
	var zero T
	d.value = zero
	d.mu.Unlock()
	defer cancel()

	v, err := d.load(fetchCtx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return ErrDetailClosed
	}
	d.cancel = nil
	d.loading = false
	if err != nil {
		d.err = err
		d.logger.Error("detail fetch failed", "id", id, "error", err)
		return err
	}
	d.value = v
	d.loaded = true
	return nil
}

// Close hides the detail and cancels any in-flight fetch.
func (d *Detail[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
	d.open = false
	d.loading = false
	d.loaded = false
	d.err = nil
	d.id = ""
	var zero T
	d.value = zero
}

// DetailView is a copy of a Detail's state.
type DetailView[T any] struct {
	ID      string
	Open    bool
	Loading bool
	Loaded  bool
	Value   T
	Error   string
}

// Snapshot returns the current state.
func (d *Detail[T]) Snapshot() DetailView[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := DetailView[T]{
		ID:      d.id,
		Open:    d.open,
		Loading: d.loading,
		Loaded:  d.loaded,
		Value:   d.value,
	}
	if d.err != nil {
		v.Error = d.err.Error()
	}
	return v
}
