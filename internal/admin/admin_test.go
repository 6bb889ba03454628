package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	console "github.com/lostfound/admin-console"
	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/model"
	"github.com/lostfound/admin-console/internal/prefs"
	"github.com/lostfound/admin-console/internal/screens"
)

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// stubAPI serves fixed rows. Mutations are recorded; ids in fail return the
// mapped error.
type stubAPI struct {
	mu sync.Mutex

	reports  []model.Report
	matches  []model.Match
	users    []model.User
	fraud    []model.FraudResult
	audit    []model.AuditLog
	listErr  error
	fail     map[string]error
	calls    []string
	lists    int
	runCount int
}

func newStubAPI() *stubAPI {
	return &stubAPI{fail: map[string]error{}}
}

func (s *stubAPI) mutate(id, format string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id+" "+fmt.Sprintf(format, args...))
	return s.fail[id]
}

func (s *stubAPI) mutations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func pageOf[T any](items []T) api.Page[T] {
	return api.Page[T]{Items: items, Total: len(items), Page: 1, Limit: 20, TotalPages: 1}
}

func (s *stubAPI) GetReports(context.Context, url.Values) (api.Page[model.Report], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return api.Page[model.Report]{}, s.listErr
	}
	return pageOf(s.reports), nil
}

func (s *stubAPI) UpdateReport(_ context.Context, id string, status model.ReportStatus) error {
	return s.mutate(id, "UpdateReport %s", status)
}

func (s *stubAPI) DeleteReport(_ context.Context, id string) error {
	return s.mutate(id, "DeleteReport")
}

func (s *stubAPI) GetReportMatches(context.Context, string) ([]model.Match, error) {
	return nil, nil
}

func (s *stubAPI) GetReportFraud(context.Context, string) (model.FraudResult, error) {
	return model.FraudResult{}, api.ErrNotFound
}

func (s *stubAPI) GetMatches(context.Context, url.Values) (api.Page[model.Match], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return pageOf(s.matches), nil
}

func (s *stubAPI) UpdateMatch(_ context.Context, id string, status model.MatchStatus) error {
	return s.mutate(id, "UpdateMatch %s", status)
}

func (s *stubAPI) TriggerMatchingForAll(context.Context) (api.MatchingRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCount++
	return api.MatchingRun{MatchesCreated: 4}, nil
}

func (s *stubAPI) ClearAllMatches(context.Context) error {
	return s.mutate("*", "ClearAllMatches")
}

func (s *stubAPI) GetMatchStats(context.Context) (model.MatchStats, error) {
	return model.MatchStats{Total: len(s.matches)}, nil
}

func (s *stubAPI) GetUsers(context.Context, url.Values) (api.Page[model.User], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return pageOf(s.users), nil
}

func (s *stubAPI) UpdateUser(_ context.Context, id string, patch api.UserPatch) error {
	return s.mutate(id, "UpdateUser")
}

func (s *stubAPI) CreateUser(_ context.Context, u api.NewUser) (model.User, error) {
	return model.User{ID: "new", Email: u.Email}, s.mutate("new", "CreateUser %s", u.Email)
}

func (s *stubAPI) DeleteUser(_ context.Context, id string) error {
	return s.mutate(id, "DeleteUser")
}

func (s *stubAPI) GetUserStats(_ context.Context, id string) (model.UserActivity, error) {
	return model.UserActivity{UserID: id}, nil
}

func (s *stubAPI) GetFraudReports(context.Context, url.Values) (api.Page[model.FraudResult], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return pageOf(s.fraud), nil
}

func (s *stubAPI) FlagReport(_ context.Context, id string, verdict model.FraudVerdict, _ string) error {
	return s.mutate(id, "FlagReport %s", verdict)
}

func (s *stubAPI) GetAuditLogs(context.Context, url.Values) (api.Page[model.AuditLog], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return pageOf(s.audit), nil
}

func (s *stubAPI) GetStatistics(context.Context) (model.Statistics, error) {
	return model.Statistics{Reports: model.ReportStats{Total: len(s.reports)}}, nil
}

func (s *stubAPI) GetDashboardData(context.Context) (model.DashboardData, error) {
	return model.DashboardData{}, nil
}

type fixture struct {
	api    *stubAPI
	ws     *screens.Workspace
	router chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	a := newStubAPI()
	ws := screens.NewWorkspace(a, screens.Options{
		PageSize:         20,
		BulkConcurrency:  2,
		RealtimeInterval: 5 * time.Second,
		Logger:           testLogger(),
	})
	t.Cleanup(ws.Shutdown)

	tmpl, err := ParseTemplates(console.Templates())
	if err != nil {
		t.Fatalf("ParseTemplates: %v", err)
	}
	operator := &model.User{ID: "admin-1", Email: "admin@example.com", Role: model.RoleAdmin}
	h := NewAdminHandler(ws, prefs.New(nil, testLogger()), tmpl,
		func(context.Context) *model.User { return operator },
		func(context.Context) string { return "csrf-test" },
		testLogger(),
	)

	r := chi.NewRouter()
	r.Get("/admin", h.HandleDashboard)
	r.Post("/admin/realtime", h.HandleRealtime(screens.ScreenDashboard, "/admin"))
	r.Get("/admin/state/{screen}", h.HandleState)
	r.Get("/admin/reports", h.HandleReports)
	r.Post("/admin/reports/bulk", h.HandleReportsBulk)
	r.Get("/admin/reports/{reportID}", h.HandleReportDetail)
	r.Post("/admin/reports/{reportID}/status", h.HandleReportStatus)
	r.Post("/admin/reports/{reportID}/delete", h.HandleReportDelete)
	r.Get("/admin/matches", h.HandleMatches)
	r.Post("/admin/matches/trigger", h.HandleMatchesTrigger)
	r.Post("/admin/matches/clear", h.HandleMatchesClear)
	r.Post("/admin/matches/realtime", h.HandleRealtime(screens.ScreenMatches, "/admin/matches"))
	r.Get("/admin/users", h.HandleUsers)
	r.Post("/admin/users/{userID}/delete", h.HandleUserDelete)
	r.Get("/admin/fraud", h.HandleFraud)
	r.Get("/admin/fraud/{fraudID}", h.HandleFraudDetail)
	r.Get("/admin/audit", h.HandleAudit)
	r.Get("/admin/audit/{logID}", h.HandleAuditDetail)

	return &fixture{api: a, ws: ws, router: r}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (f *fixture) post(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func reportRows() []model.Report {
	return []model.Report{
		{ID: "r1", Title: "Black wallet", Type: model.ReportLost, Status: model.ReportPending},
		{ID: "r2", Title: "Blue umbrella", Type: model.ReportFound, Status: model.ReportApproved},
	}
}

func TestReportsListRendersRows(t *testing.T) {
	f := newFixture(t)
	f.api.reports = reportRows()

	rec := f.get(t, "/admin/reports?status=pending")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Black wallet", "Blue umbrella", `value="csrf-test"`, `class="active"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if got := f.ws.Reports.Query().Filters.Get("status"); got != "pending" {
		t.Errorf("status filter = %q", got)
	}
}

func TestReportsEmptyAndErrorStates(t *testing.T) {
	tests := []struct {
		name    string
		listErr error
		want    string
		absent  string
	}{
		{name: "empty", want: "No reports found", absent: "Try again"},
		{name: "error", listErr: errors.New("boom"), want: "Try again", absent: "No reports found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.api.listErr = tt.listErr

			rec := f.get(t, "/admin/reports")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			body := rec.Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if strings.Contains(body, tt.absent) {
				t.Errorf("body should not contain %q", tt.absent)
			}
		})
	}
}

func TestReportStatusRedirectsWithFlash(t *testing.T) {
	f := newFixture(t)
	f.api.reports = reportRows()
	f.get(t, "/admin/reports?type=lost")

	rec := f.post(t, "/admin/reports/r1/status", url.Values{"status": {"approved"}})
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/reports?type=lost" {
		t.Errorf("Location = %q", loc)
	}
	if got := f.api.mutations(); len(got) != 1 || got[0] != "r1 UpdateReport approved" {
		t.Errorf("mutations = %v", got)
	}

	body := f.get(t, "/admin/reports?type=lost").Body.String()
	if !strings.Contains(body, "Report marked approved") {
		t.Error("flash not shown after redirect")
	}
	body = f.get(t, "/admin/reports?type=lost").Body.String()
	if strings.Contains(body, "Report marked approved") {
		t.Error("flash shown twice")
	}
}

func (s *stubAPI) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func TestActionRedirectDoesNotRefetchTwice(t *testing.T) {
	f := newFixture(t)
	f.api.reports = reportRows()
	f.get(t, "/admin/reports?type=lost")

	start := f.api.listCount()
	rec := f.post(t, "/admin/reports/r1/status", url.Values{"status": {"approved"}})
	if got := f.api.listCount() - start; got != 1 {
		t.Fatalf("fetches during action = %d, want 1", got)
	}

	body := f.get(t, rec.Header().Get("Location")).Body.String()
	if got := f.api.listCount() - start; got != 1 {
		t.Errorf("fetches after redirect = %d, want 1", got)
	}
	if !strings.Contains(body, "Black wallet") || !strings.Contains(body, "Report marked approved") {
		t.Error("redirected page missing rows or flash")
	}

	// A later visit, or one with a different query, fetches again.
	f.get(t, "/admin/reports?type=lost")
	if got := f.api.listCount() - start; got != 2 {
		t.Errorf("fetches after revisit = %d, want 2", got)
	}
	f.post(t, "/admin/reports/r1/status", url.Values{"status": {"approved"}})
	before := f.api.listCount()
	f.get(t, "/admin/reports?type=found")
	if f.api.listCount() != before+1 {
		t.Error("changed query after an action did not fetch")
	}
}

func TestDetailDeepLinkLoadsList(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(a *stubAPI)
		target string
		want   string
		absent string
	}{
		{
			name: "fraud",
			setup: func(a *stubAPI) {
				a.fraud = []model.FraudResult{{ID: "f1", ReportID: "rep-1", RiskLevel: model.RiskHigh, FraudScore: 82}}
			},
			target: "/admin/fraud/f1",
			want:   "<h2>Report rep-1</h2>",
			absent: "Failed to load fraud analysis",
		},
		{
			name: "audit",
			setup: func(a *stubAPI) {
				a.audit = []model.AuditLog{{ID: "l1", Action: "report.approved", Details: "approved by admin"}}
			},
			target: "/admin/audit/l1",
			want:   "<dd>approved by admin</dd>",
			absent: "Audit entry not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f.api)

			rec := f.get(t, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			body := rec.Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if strings.Contains(body, tt.absent) {
				t.Errorf("body contains %q", tt.absent)
			}
			if f.api.listCount() != 1 {
				t.Errorf("list fetches = %d, want 1", f.api.listCount())
			}

			f.get(t, tt.target)
			if f.api.listCount() != 1 {
				t.Error("detail refetched a list that was already loaded")
			}
		})
	}
}

func TestReportStatusRefusedLocally(t *testing.T) {
	f := newFixture(t)
	f.api.reports = []model.Report{{ID: "r3", Title: "Keys", Status: model.ReportResolved}}
	f.get(t, "/admin/reports")

	rec := f.post(t, "/admin/reports/r3/status", url.Values{"status": {"pending"}})
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := f.api.mutations(); len(got) != 0 {
		t.Errorf("API called for a refused transition: %v", got)
	}
	body := f.get(t, "/admin/reports").Body.String()
	if !strings.Contains(body, "cannot move to pending") {
		t.Error("refusal not shown")
	}
}

func TestReportStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/admin/reports/r1/status", url.Values{"status": {"archived"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReportsBulkPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.api.reports = reportRows()
	f.api.fail["r2"] = errors.New("conflict")
	f.get(t, "/admin/reports")

	rec := f.post(t, "/admin/reports/bulk", url.Values{"action": {"delete"}, "ids": {"r1", "r2"}})
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if n := len(f.api.mutations()); n != 2 {
		t.Errorf("mutations = %d, want 2", n)
	}
	if sel := f.ws.Reports.Snapshot().Selected; len(sel) != 0 {
		t.Errorf("selection not cleared: %v", sel)
	}
	body := f.get(t, "/admin/reports").Body.String()
	for _, want := range []string{"Updated 1 of 2 reports", "Failed: r2"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestReportsBulkEmptySelection(t *testing.T) {
	f := newFixture(t)
	f.api.reports = reportRows()
	f.get(t, "/admin/reports")

	f.post(t, "/admin/reports/bulk", url.Values{"action": {"approved"}})
	if got := f.api.mutations(); len(got) != 0 {
		t.Errorf("mutations = %v", got)
	}
	if !strings.Contains(f.get(t, "/admin/reports").Body.String(), "No reports selected") {
		t.Error("empty selection not reported")
	}
}

func TestReportsBulkRejectsUnknownAction(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/admin/reports/bulk", url.Values{"action": {"resolved"}, "ids": {"r1"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStateReturnsSnapshotWithoutFetching(t *testing.T) {
	f := newFixture(t)
	f.api.reports = reportRows()
	f.get(t, "/admin/reports?search=wallet")
	before := f.api.lists

	rec := f.get(t, "/admin/state/reports")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.api.lists != before {
		t.Error("state endpoint fetched")
	}
	var got stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Screen != "reports" || got.Status != "success" || got.Filters["search"] != "wallet" {
		t.Errorf("state = %+v", got)
	}

	if rec := f.get(t, "/admin/state/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown screen status = %d", rec.Code)
	}
}

func TestMatchesRealtimeSetsRefreshHeader(t *testing.T) {
	f := newFixture(t)
	f.api.matches = []model.Match{{ID: "m1", Status: model.MatchCandidate}}

	if rec := f.get(t, "/admin/matches"); rec.Header().Get("Refresh") != "" {
		t.Error("Refresh header set while real-time is off")
	}

	rec := f.post(t, "/admin/matches/realtime", url.Values{"enabled": {"on"}})
	if rec.Code != http.StatusFound || !f.ws.Realtime(screens.ScreenMatches) {
		t.Fatalf("real-time not enabled: status %d", rec.Code)
	}

	rec = f.get(t, "/admin/matches?status=candidate")
	if got := rec.Header().Get("Refresh"); got != "5; url=/admin/matches?live=1&status=candidate" {
		t.Errorf("Refresh = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Stop real-time") {
		t.Error("toggle does not offer stop")
	}

	before := f.api.lists
	f.get(t, "/admin/matches?live=1&status=candidate")
	if f.api.lists != before {
		t.Error("live reload fetched again")
	}

	f.post(t, "/admin/matches/realtime", url.Values{})
	if f.ws.Realtime(screens.ScreenMatches) {
		t.Error("real-time still on")
	}
}

func TestRealtimeUnsupportedScreen(t *testing.T) {
	f := newFixture(t)
	h := NewAdminHandler(f.ws, nil, nil, nil, nil, testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/reports/realtime", strings.NewReader("enabled=on"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.HandleRealtime(screens.ScreenReports, "/admin/reports")(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMatchesClearNeedsConfirmation(t *testing.T) {
	f := newFixture(t)

	f.post(t, "/admin/matches/clear", url.Values{})
	if got := f.api.mutations(); len(got) != 0 {
		t.Errorf("cleared without confirmation: %v", got)
	}

	f.post(t, "/admin/matches/clear", url.Values{"confirm": {"yes"}})
	if got := f.api.mutations(); len(got) != 1 {
		t.Errorf("mutations = %v", got)
	}
}

func TestMatchesTriggerFlash(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/admin/matches/trigger", url.Values{})
	if f.api.runCount != 1 {
		t.Fatalf("trigger calls = %d", f.api.runCount)
	}
	if !strings.Contains(f.get(t, "/admin/matches").Body.String(), "Matching finished: 4 new matches") {
		t.Error("trigger result not shown")
	}
}

func TestUserDeleteRefusesSelf(t *testing.T) {
	f := newFixture(t)
	f.api.users = []model.User{{ID: "admin-1", Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true}}
	f.get(t, "/admin/users")

	f.post(t, "/admin/users/admin-1/delete", url.Values{})
	if got := f.api.mutations(); len(got) != 0 {
		t.Errorf("own account deleted: %v", got)
	}
}

func TestScreensRender(t *testing.T) {
	for _, path := range []string{"/admin", "/admin/users", "/admin/fraud", "/admin/audit"} {
		t.Run(path, func(t *testing.T) {
			f := newFixture(t)
			rec := f.get(t, path)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPageURL(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/admin/reports?status=pending&page=3")
	q := f.ws.Reports.Query()

	tests := []struct {
		page int
		want string
	}{
		{1, "/admin/reports?status=pending"},
		{3, "/admin/reports?page=3&status=pending"},
	}
	for _, tt := range tests {
		if got := pageURL(reportsPath, q.Filters, tt.page); got != tt.want {
			t.Errorf("pageURL(%d) = %q, want %q", tt.page, got, tt.want)
		}
	}
}
