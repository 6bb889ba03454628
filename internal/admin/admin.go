package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/listview"
	"github.com/lostfound/admin-console/internal/model"
	"github.com/lostfound/admin-console/internal/prefs"
	"github.com/lostfound/admin-console/internal/screens"
)

// UserFunc extracts the signed-in operator from a context.
type UserFunc func(ctx context.Context) *model.User

// CSRFFunc extracts the CSRF token from a context.
type CSRFFunc func(ctx context.Context) string

// AdminHandler serves every admin screen.
type AdminHandler struct {
	ws        *screens.Workspace
	prefs     *prefs.Store
	templates *template.Template
	getUser   UserFunc
	getCSRF   CSRFFunc
	logger    *slog.Logger

	mu    sync.Mutex
	flash map[string]flash
	// settled marks lists an action has just refetched, keyed by path.
	settled map[string]bool
}

// flash is a one-shot message shown on the next render of a screen.
type flash struct {
	Notice string
	Error  string
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(ws *screens.Workspace, p *prefs.Store, tmpl *template.Template, getUser UserFunc, getCSRF CSRFFunc, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		ws:        ws,
		prefs:     p,
		templates: tmpl,
		getUser:   getUser,
		getCSRF:   getCSRF,
		logger:    logger,
		flash:     make(map[string]flash),
		settled:   make(map[string]bool),
	}
}

// ParseTemplates parses the page and partial templates with the helper
// functions they use.
func ParseTemplates(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, "*.html", "partials/*.html")
}

var funcMap = template.FuncMap{
	"pageURL": pageURL,
	"filter": func(f listview.Filters, key string) string {
		return f.Get(key)
	},
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
	"fmtTimePtr": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
	"pretty": func(raw json.RawMessage) string {
		if len(raw) == 0 {
			return ""
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return string(raw)
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return string(raw)
		}
		return string(b)
	},
	"join":         strings.Join,
	"add":          func(a, b int) int { return a + b },
	"nextStatuses": model.NextReportStatuses,
	"score": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 0, 64)
	},
}

// pageURL renders a list URL for the given filters and page.
func pageURL(base string, f listview.Filters, page int) string {
	q := f.Values()
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

// listURL is where an action on a screen redirects: the list as the
// controller currently shows it.
func listURL(base string, q listview.Query) string {
	return pageURL(base, q.Filters, q.Page)
}

// liveURL is the URL a real-time page reloads itself with.
func liveURL(base string, q listview.Query) string {
	v := q.Filters.Values()
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	v.Set("live", "1")
	return base + "?" + v.Encode()
}

// liveReload reports whether r is a real-time reload of a screen whose poller
// is running. Such a reload shows the poller's latest snapshot instead of
// fetching again.
func (h *AdminHandler) liveReload(r *http.Request, screen string) bool {
	return r.URL.Query().Get("live") == "1" && h.ws.Realtime(screen)
}

// liveRefresh asks the browser to reload a real-time page once per poll
// interval.
func (h *AdminHandler) liveRefresh(w http.ResponseWriter, screen string, every time.Duration, url string) {
	if h.ws.Realtime(screen) {
		w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", int(every.Seconds()), url))
	}
}

// navigate applies the request's filters and page to a controller and
// fetches. Fetch errors are logged by the controller and end up in the view,
// not the response. A settled list already holds a successful fetch of the
// same query and is left alone.
func navigate[T, S any](ctx context.Context, c *listview.Controller[T, S], r *http.Request, keys []string, settled bool) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	f := listview.FiltersFromQuery(q, keys...)
	if settled {
		cur := c.Query()
		if cur.Page == page && cur.Filters.Equal(f) && c.Snapshot().Status == listview.StatusSuccess {
			return
		}
	}
	_ = c.Navigate(ctx, f, page)
}

// loadIfIdle fetches a list that has never been fetched, so a detail opened
// by direct link has its page behind it.
func loadIfIdle[T, S any](ctx context.Context, c *listview.Controller[T, S], r *http.Request, keys []string) {
	if c.Snapshot().Status == listview.StatusIdle {
		navigate(ctx, c, r, keys, false)
	}
}

func (h *AdminHandler) setFlash(screen string, f flash) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flash[screen] = f
}

func (h *AdminHandler) takeFlash(screen string) flash {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := h.flash[screen]
	delete(h.flash, screen)
	return f
}

// actionError turns an action error into the message shown to the operator.
// Local refusals and validation errors are shown as is; API failures get a
// generic message.
func actionError(generic string, err error) string {
	switch {
	case errors.Is(err, screens.ErrTransitionNotAllowed), errors.Is(err, screens.ErrInvalidUser):
		return err.Error()
	case errors.Is(err, api.ErrSessionExpired), errors.Is(err, api.ErrNoToken):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, api.ErrNotFound):
		return generic + ": not found"
	default:
		return generic
	}
}

// bulkFlash summarises a bulk action for the next render.
func bulkFlash(noun string, res listview.BulkResult) flash {
	total := len(res.Succeeded) + len(res.Failed)
	if total == 0 {
		return flash{Error: "No " + noun + " selected"}
	}
	if len(res.Failed) == 0 {
		return flash{Notice: fmt.Sprintf("Updated %d %s", total, noun)}
	}
	return flash{
		Notice: fmt.Sprintf("Updated %d of %d %s", len(res.Succeeded), total, noun),
		Error:  "Failed: " + strings.Join(res.FailedIDs(), ", "),
	}
}

// selectFromForm replaces the controller's selection with the ids posted
// by the bulk toolbar. "all" selects every visible row.
func selectFromForm[T, S any](c *listview.Controller[T, S], r *http.Request) {
	c.ClearSelection()
	if r.FormValue("all") == "on" {
		c.SelectAll(true)
		return
	}
	for _, id := range r.Form["ids"] {
		c.Select(id, true)
	}
}

// HandleDashboard renders the landing page.
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d := h.ws.Dashboard
	if !h.liveReload(r, screens.ScreenDashboard) {
		_ = d.Refresh(r.Context())
	}
	h.liveRefresh(w, screens.ScreenDashboard, d.Realtime.Interval(), "/admin?live=1")
	h.render(w, r, "dashboard.html", screens.ScreenDashboard, map[string]interface{}{
		"View":     d.Snapshot(),
		"Realtime": h.ws.Realtime(screens.ScreenDashboard),
		"Interval": d.Realtime.Interval(),
		"Base":     "/admin",
		"Toggle":   "/admin/realtime",
	})
}

// HandleRealtime returns a handler toggling real-time refresh for screen.
func (h *AdminHandler) HandleRealtime(screen, back string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		on := r.FormValue("enabled") == "on"
		if !h.ws.SetRealtime(screen, on) {
			http.Error(w, "Real-time refresh not supported", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, back, http.StatusFound)
	}
}

// stateResponse is the JSON snapshot real-time pages poll.
type stateResponse struct {
	Screen     string              `json:"screen"`
	Status     string              `json:"status"`
	Error      string              `json:"error,omitempty"`
	StatsError string              `json:"stats_error,omitempty"`
	Filters    map[string]string   `json:"filters"`
	Pagination listview.Pagination `json:"pagination"`
	Selected   []string            `json:"selected"`
	Realtime   bool                `json:"realtime"`
	FetchedAt  time.Time           `json:"fetched_at"`
	Generation uint64              `json:"generation"`
	Items      any                 `json:"items"`
	Stats      any                 `json:"stats,omitempty"`
}

func stateOf[T, S any](v listview.View[T, S], realtime bool) stateResponse {
	filters := make(map[string]string, v.Filters.Len())
	for _, k := range v.Filters.Keys() {
		filters[k] = v.Filters.Get(k)
	}
	s := stateResponse{
		Screen:     v.Screen,
		Status:     v.Status.String(),
		Error:      v.Error,
		StatsError: v.StatsError,
		Filters:    filters,
		Pagination: v.Pagination,
		Selected:   v.Selected,
		Realtime:   realtime,
		FetchedAt:  v.FetchedAt,
		Generation: v.Generation,
		Items:      v.Items,
	}
	if v.HasStats {
		s.Stats = v.Stats
	}
	return s
}

// HandleState serves the current view state of a screen as JSON, without
// fetching.
func (h *AdminHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	screen := chi.URLParam(r, "screen")
	rt := h.ws.Realtime(screen)

	var state stateResponse
	switch screen {
	case screens.ScreenDashboard:
		state = stateOf(h.ws.Dashboard.Snapshot(), rt)
	case screens.ScreenReports:
		state = stateOf(h.ws.Reports.Snapshot(), rt)
	case screens.ScreenMatches:
		state = stateOf(h.ws.Matches.Snapshot(), rt)
	case screens.ScreenUsers:
		state = stateOf(h.ws.Users.Snapshot(), rt)
	case screens.ScreenFraud:
		state = stateOf(h.ws.Fraud.Snapshot(), rt)
	case screens.ScreenAudit:
		state = stateOf(h.ws.Audit.Snapshot(), rt)
	default:
		http.Error(w, "Unknown screen", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		h.logger.Error("encode screen state", "screen", screen, "error", err)
	}
}

// --- Helpers ---

func (h *AdminHandler) render(w http.ResponseWriter, r *http.Request, name, screen string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	f := h.takeFlash(screen)
	data["Screen"] = screen
	data["Notice"] = f.Notice
	data["Flash"] = f.Error
	data["User"] = h.getUser(r.Context())
	data["CSRFToken"] = h.getCSRF(r.Context())
	addChrome(data, h.prefs)

	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// addChrome adds the layout settings every page needs.
func addChrome(data map[string]interface{}, p *prefs.Store) {
	data["Lang"] = "en"
	data["Dir"] = "ltr"
	data["DarkMode"] = false
	if p == nil {
		return
	}
	tag := p.Locale()
	data["Lang"] = tag.String()
	if prefs.IsRTL(tag) {
		data["Dir"] = "rtl"
	}
	data["DarkMode"] = p.DarkMode()
}

// Chrome returns the layout settings for pages rendered outside the admin
// screens, such as login and settings.
func Chrome(p *prefs.Store) map[string]interface{} {
	data := make(map[string]interface{})
	addChrome(data, p)
	return data
}

// redirectTo sends the browser back to the list after an action. The action
// has refetched already, so the next GET of that list need not.
func (h *AdminHandler) redirectTo(w http.ResponseWriter, r *http.Request, base string, q listview.Query) {
	h.mu.Lock()
	h.settled[base] = true
	h.mu.Unlock()
	http.Redirect(w, r, listURL(base, q), http.StatusFound)
}

// takeSettled reports and clears the settled mark for base.
func (h *AdminHandler) takeSettled(base string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ok := h.settled[base]
	delete(h.settled, base)
	return ok
}
