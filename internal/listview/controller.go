package listview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by a fetch whose results were discarded because a
// newer fetch on the same controller started before it finished.
var ErrSuperseded = errors.New("listview: fetch superseded")

const defaultBulkConcurrency = 8

// Page is one page of items as returned by a Source.
type Page[T any] struct {
	Items      []T
	Total      int
	TotalPages int
}

// Source fetches the list and the aggregate stats for one screen.
type Source[T, S any] interface {
	List(ctx context.Context, q Query) (Page[T], error)
	Stats(ctx context.Context, q Query) (S, error)
}

// SourceFuncs adapts two functions to a Source. A nil StatsFunc yields the
// zero S without error, for screens that have no stats panel.
type SourceFuncs[T, S any] struct {
	ListFunc  func(ctx context.Context, q Query) (Page[T], error)
	StatsFunc func(ctx context.Context, q Query) (S, error)
}

func (f SourceFuncs[T, S]) List(ctx context.Context, q Query) (Page[T], error) {
	return f.ListFunc(ctx, q)
}

func (f SourceFuncs[T, S]) Stats(ctx context.Context, q Query) (S, error) {
	if f.StatsFunc == nil {
		var zero S
		return zero, nil
	}
	return f.StatsFunc(ctx, q)
}

// Options configure a Controller.
type Options[T any] struct {
	// Name identifies the screen in logs, e.g. "reports".
	Name string
	// ErrorMessage is the banner shown when the list fetch fails.
	ErrorMessage string
	// ID extracts the row id used for selection.
	ID func(T) string
	// Limit is the page size; DefaultLimit when zero.
	Limit int
	// Filters are the initial filters.
	Filters Filters
	// BulkConcurrency bounds concurrent calls in Bulk.
	BulkConcurrency int
	Logger          *slog.Logger
}

// Controller is the state of one list screen. All methods are safe for
// concurrent use. Each fetch takes a generation number; only the newest
// generation commits and starting a fetch cancels the one it supersedes.
type Controller[T, S any] struct {
	name      string
	errMsg    string
	src       Source[T, S]
	idOf      func(T) string
	bulkLimit int
	logger    *slog.Logger

	mu        sync.Mutex
	filters   Filters
	page      Pagination
	items     []T
	stats     S
	hasStats  bool
	statsErr  error
	err       error
	status    Status
	settled   Status
	gen       uint64
	cancel    context.CancelFunc
	selection Selection
	fetchedAt time.Time
}

// NewController creates a controller in the idle state. Nothing is fetched
// until Refresh or one of the navigation methods is called.
func NewController[T, S any](src Source[T, S], opts Options[T]) *Controller[T, S] {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	bulk := opts.BulkConcurrency
	if bulk <= 0 {
		bulk = defaultBulkConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errMsg := opts.ErrorMessage
	if errMsg == "" {
		errMsg = fmt.Sprintf("Failed to fetch %s", opts.Name)
	}
	return &Controller[T, S]{
		name:      opts.Name,
		errMsg:    errMsg,
		src:       src,
		idOf:      opts.ID,
		bulkLimit: bulk,
		logger:    logger.With("screen", opts.Name),
		filters:   opts.Filters,
		page:      Pagination{Page: 1, Limit: limit},
	}
}

// Name returns the screen name.
func (c *Controller[T, S]) Name() string { return c.name }

// Filters returns the current filters.
func (c *Controller[T, S]) Filters() Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Query returns the query the next fetch will send.
func (c *Controller[T, S]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryLocked()
}

func (c *Controller[T, S]) queryLocked() Query {
	return Query{Filters: c.filters, Page: c.page.Page, Limit: c.page.Limit}
}

// Refresh fetches the list and stats concurrently and commits both together.
// A stats failure does not block the list; it is exposed separately in the
// view. A list failure sets the screen error and keeps the previous items.
// If a newer fetch starts first, the results are dropped and ErrSuperseded
// is returned.
func (c *Controller[T, S]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	q := c.queryLocked()
	c.status = StatusLoading
	c.mu.Unlock()
	defer cancel()

	var (
		page     Page[T]
		stats    S
		statsErr error
		g        errgroup.Group
	)
	g.Go(func() error {
		var err error
		page, err = c.src.List(fetchCtx, q)
		return err
	})
	g.Go(func() error {
		stats, statsErr = c.src.Stats(fetchCtx, q)
		return nil
	})
	listErr := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.Debug("discarding superseded fetch", "generation", gen, "latest", c.gen)
		return ErrSuperseded
	}
	c.cancel = nil

	if listErr != nil && ctx.Err() != nil {
		c.status = c.settled
		return ctx.Err()
	}

	if statsErr != nil {
		c.statsErr = statsErr
		c.logger.Warn("stats fetch failed", "error", statsErr)
	} else {
		c.stats = stats
		c.hasStats = true
		c.statsErr = nil
	}

	if listErr != nil {
		c.err = listErr
		c.status = StatusError
		c.settled = StatusError
		c.logger.Error("list fetch failed", "error", listErr, "page", q.Page)
		return fmt.Errorf("fetch %s: %w", c.name, listErr)
	}

	c.items = page.Items
	c.page.Total = page.Total
	c.page.TotalPages = page.TotalPages
	c.err = nil
	c.status = StatusSuccess
	c.settled = StatusSuccess
	c.fetchedAt = time.Now()
	return nil
}

// SetFilter sets one filter and refetches. Changing a value resets the page
// to 1; the page size is kept.
func (c *Controller[T, S]) SetFilter(ctx context.Context, key, value string) error {
	c.mu.Lock()
	c.applyFiltersLocked(c.filters.With(key, value))
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// ApplyFilters replaces all filters and refetches, resetting the page to 1
// when they differ from the current ones.
func (c *Controller[T, S]) ApplyFilters(ctx context.Context, f Filters) error {
	c.mu.Lock()
	c.applyFiltersLocked(f)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

func (c *Controller[T, S]) applyFiltersLocked(f Filters) bool {
	if f.Equal(c.filters) {
		return false
	}
	c.filters = f
	c.page.Page = 1
	return true
}

// SetPage moves to page, clamped to the known page range, and refetches.
func (c *Controller[T, S]) SetPage(ctx context.Context, page int) error {
	c.mu.Lock()
	c.page.Page = c.page.Clamp(page)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Navigate applies filters and a page together, the way a list URL carries
// them. When the filters changed the requested page is ignored and the page
// resets to 1.
func (c *Controller[T, S]) Navigate(ctx context.Context, f Filters, page int) error {
	c.mu.Lock()
	if !c.applyFiltersLocked(f) {
		c.page.Page = c.page.Clamp(page)
	}
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Transition issues one mutating call for id and then refetches
// unconditionally. Nothing is updated optimistically. The call's error is
// logged and returned; a refetch failure only shows up in the view.
func (c *Controller[T, S]) Transition(ctx context.Context, id string, fn func(ctx context.Context, id string) error) error {
	err := fn(ctx, id)
	if err != nil {
		c.logger.Error("status transition failed", "id", id, "error", err)
	}
	if rerr := c.Refresh(ctx); rerr != nil && !errors.Is(rerr, ErrSuperseded) {
		c.logger.Debug("refetch after transition failed", "id", id, "error", rerr)
	}
	return err
}

// BulkFailure is one id a bulk action could not apply to.
type BulkFailure struct {
	ID  string
	Err error
}

// BulkResult reports the per-id outcome of a bulk action.
type BulkResult struct {
	Succeeded []string
	Failed    []BulkFailure
}

// Err joins the failures, or returns nil when every call succeeded.
func (r BulkResult) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}

// FailedIDs returns the ids that failed.
func (r BulkResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

// Bulk calls fn once per selected id, concurrently up to the configured
// bound, and waits for all of them. The selection is then cleared and the
// list refetched exactly once whatever the outcome.
func (c *Controller[T, S]) Bulk(ctx context.Context, fn func(ctx context.Context, id string) error) BulkResult {
	c.mu.Lock()
	ids := c.selection.IDs()
	c.mu.Unlock()

	var (
		mu  sync.Mutex
		res BulkResult
		g   errgroup.Group
	)
	g.SetLimit(c.bulkLimit)
	for _, id := range ids {
		g.Go(func() error {
			err := fn(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, BulkFailure{ID: id, Err: err})
			} else {
				res.Succeeded = append(res.Succeeded, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(res.Succeeded)
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].ID < res.Failed[j].ID })
	if len(res.Failed) > 0 {
		c.logger.Error("bulk action had failures",
			"selected", len(ids), "failed", len(res.Failed), "error", res.Err())
	}

	c.mu.Lock()
	c.selection.Clear()
	c.mu.Unlock()

	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		c.logger.Debug("refetch after bulk action failed", "error", err)
	}
	return res
}

// Toggle flips the selection of one row.
func (c *Controller[T, S]) Toggle(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Toggle(id)
}

// Select sets the selection of one row.
func (c *Controller[T, S]) Select(id string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Set(id, on)
}

// SelectAll selects every visible row when on is true and clears the
// selection otherwise.
func (c *Controller[T, S]) SelectAll(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !on {
		c.selection.Clear()
		return
	}
	c.selection.SelectAll(c.visibleIDsLocked())
}

// ClearSelection empties the selection.
func (c *Controller[T, S]) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
}

// Selected returns the selected ids in sorted order.
func (c *Controller[T, S]) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.IDs()
}

func (c *Controller[T, S]) visibleIDsLocked() []string {
	if c.idOf == nil {
		return nil
	}
	ids := make([]string, 0, len(c.items))
	for _, it := range c.items {
		ids = append(ids, c.idOf(it))
	}
	return ids
}

// Find returns the visible row with the given id.
func (c *Controller[T, S]) Find(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idOf != nil {
		for _, it := range c.items {
			if c.idOf(it) == id {
				return it, true
			}
		}
	}
	var zero T
	return zero, false
}

// Snapshot returns a copy of the current view state.
func (c *Controller[T, S]) Snapshot() View[T, S] {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View[T, S]{
		Screen:      c.name,
		Status:      c.status,
		Items:       append([]T(nil), c.items...),
		Stats:       c.stats,
		HasStats:    c.hasStats,
		Filters:     c.filters,
		Pagination:  c.page,
		Selected:    c.selection.IDs(),
		AllSelected: c.selection.AllSelected(c.visibleIDsLocked()),
		FetchedAt:   c.fetchedAt,
		Generation:  c.gen,
	}
	if c.err != nil {
		v.Error = c.errMsg
	}
	if c.statsErr != nil {
		v.StatsError = c.statsErr.Error()
	}
	return v
}
