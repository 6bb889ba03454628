package screens

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

// fakeAPI is an in-memory API. Mutating calls for ids in fail return the
// mapped error.
type fakeAPI struct {
	mu sync.Mutex

	reports       []model.Report
	matches       []model.Match
	users         []model.User
	fraud         []model.FraudResult
	audit         []model.AuditLog
	stats         model.Statistics
	statsErr      error
	matchStats    model.MatchStats
	dashboard     model.DashboardData
	reportMatches map[string][]model.Match
	reportFraud   map[string]model.FraudResult
	activity      map[string]model.UserActivity
	fail          map[string]error

	calls      []string
	lists      map[string]int
	lastQuery  url.Values
	created    []api.NewUser
	triggerRun api.MatchingRun
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		reportMatches: map[string][]model.Match{},
		reportFraud:   map[string]model.FraudResult{},
		activity:      map[string]model.UserActivity{},
		fail:          map[string]error{},
		lists:         map[string]int{},
	}
}

func (f *fakeAPI) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	if len(args) > 0 {
		if id, ok := args[0].(string); ok {
			return f.fail[id]
		}
	}
	return nil
}

func (f *fakeAPI) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) listCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists[name]
}

func page[T any](f *fakeAPI, name string, q url.Values, items []T) api.Page[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[name]++
	f.lastQuery = q
	return api.Page[T]{Items: append([]T(nil), items...), Total: len(items), TotalPages: 1, Page: 1, Limit: 25}
}

func (f *fakeAPI) GetReports(_ context.Context, q url.Values) (api.Page[model.Report], error) {
	return page(f, "reports", q, f.reports), nil
}

func (f *fakeAPI) UpdateReport(_ context.Context, id string, status model.ReportStatus) error {
	return f.record("%s UpdateReport %s", id, status)
}

func (f *fakeAPI) DeleteReport(_ context.Context, id string) error {
	return f.record("%s DeleteReport", id)
}

func (f *fakeAPI) GetReportMatches(_ context.Context, id string) ([]model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reportMatches[id], nil
}

func (f *fakeAPI) GetReportFraud(_ context.Context, id string) (model.FraudResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reportFraud[id]
	if !ok {
		return model.FraudResult{}, fmt.Errorf("get fraud for %s: %w", id, api.ErrNotFound)
	}
	return r, nil
}

func (f *fakeAPI) GetMatches(_ context.Context, q url.Values) (api.Page[model.Match], error) {
	return page(f, "matches", q, f.matches), nil
}

func (f *fakeAPI) UpdateMatch(_ context.Context, id string, status model.MatchStatus) error {
	return f.record("%s UpdateMatch %s", id, status)
}

func (f *fakeAPI) TriggerMatchingForAll(context.Context) (api.MatchingRun, error) {
	err := f.record("TriggerMatchingForAll")
	return f.triggerRun, err
}

func (f *fakeAPI) ClearAllMatches(context.Context) error {
	return f.record("ClearAllMatches")
}

func (f *fakeAPI) GetMatchStats(context.Context) (model.MatchStats, error) {
	return f.matchStats, nil
}

func (f *fakeAPI) GetUsers(_ context.Context, q url.Values) (api.Page[model.User], error) {
	return page(f, "users", q, f.users), nil
}

func (f *fakeAPI) UpdateUser(_ context.Context, id string, patch api.UserPatch) error {
	switch {
	case patch.IsActive != nil:
		return f.record("%s UpdateUser active=%t", id, *patch.IsActive)
	case patch.Role != nil:
		return f.record("%s UpdateUser role=%s", id, *patch.Role)
	}
	return f.record("%s UpdateUser", id)
}

func (f *fakeAPI) CreateUser(_ context.Context, u api.NewUser) (model.User, error) {
	f.mu.Lock()
	f.created = append(f.created, u)
	f.mu.Unlock()
	if err := f.record("%s CreateUser", u.Email); err != nil {
		return model.User{}, err
	}
	return model.User{ID: "u-new", Email: u.Email, DisplayName: u.DisplayName, Role: u.Role, IsActive: true}, nil
}

func (f *fakeAPI) DeleteUser(_ context.Context, id string) error {
	return f.record("%s DeleteUser", id)
}

func (f *fakeAPI) GetUserStats(_ context.Context, id string) (model.UserActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activity[id]
	if !ok {
		return model.UserActivity{}, fmt.Errorf("user stats %s: %w", id, api.ErrNotFound)
	}
	return a, nil
}

func (f *fakeAPI) GetFraudReports(_ context.Context, q url.Values) (api.Page[model.FraudResult], error) {
	return page(f, "fraud", q, f.fraud), nil
}

func (f *fakeAPI) FlagReport(_ context.Context, id string, verdict model.FraudVerdict, notes string) error {
	return f.record("%s FlagReport %s %q", id, verdict, notes)
}

func (f *fakeAPI) GetAuditLogs(_ context.Context, q url.Values) (api.Page[model.AuditLog], error) {
	return page(f, "audit", q, f.audit), nil
}

func (f *fakeAPI) GetStatistics(context.Context) (model.Statistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, f.statsErr
}

func (f *fakeAPI) GetDashboardData(context.Context) (model.DashboardData, error) {
	return f.dashboard, nil
}

// memJournal is an in-memory Journal.
type memJournal struct {
	mu      sync.Mutex
	actions []*model.ConsoleAction
}

func (j *memJournal) RecordAction(_ context.Context, a *model.ConsoleAction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if a.ID == "" {
		a.ID = fmt.Sprintf("act-%d", len(j.actions)+1)
	}
	j.actions = append(j.actions, a)
	return nil
}

func (j *memJournal) ListRecentActions(_ context.Context, limit int) ([]*model.ConsoleAction, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*model.ConsoleAction, 0, limit)
	for i := len(j.actions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.actions[i])
	}
	return out, nil
}

func (j *memJournal) all() []*model.ConsoleAction {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*model.ConsoleAction(nil), j.actions...)
}

// recordingNotifier captures digests.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []*model.ConsoleAction
}

func (n *recordingNotifier) BulkFailures(_ context.Context, a *model.ConsoleAction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, a)
	return nil
}

type fixture struct {
	api      *fakeAPI
	journal  *memJournal
	notifier *recordingNotifier
	ws       *Workspace
}

func newFixture() *fixture {
	f := &fixture{api: newFakeAPI(), journal: &memJournal{}, notifier: &recordingNotifier{}}
	f.ws = NewWorkspace(f.api, Options{
		PageSize:        25,
		BulkConcurrency: 4,
		Journal:         f.journal,
		Notifier:        f.notifier,
		Logger:          testLogger(),
	})
	return f
}
