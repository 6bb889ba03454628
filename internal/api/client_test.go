package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lostfound/admin-console/internal/model"
)

type staticToken string

func (s staticToken) AuthToken() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, Tokens: StoreTokenSource(staticToken(token))})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestGetReportsSendsQueryAndBearer(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/reports" {
			t.Errorf("path = %s, want /admin/reports", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, `{"items":[{"id":7,"type":"lost","status":"pending","title":"Blue wallet",
			"owner":{"email":"a@example.com","first_name":"Ada","last_name":"L"}}],
			"total":41,"total_pages":2,"page":1,"limit":25}`)
	}, "opaque-token")

	q := url.Values{"status": {"pending"}, "page": {"1"}, "limit": {"25"}}
	page, err := c.GetReports(context.Background(), q)
	if err != nil {
		t.Fatalf("GetReports: %v", err)
	}

	if gotAuth != "Bearer opaque-token" {
		t.Errorf("Authorization = %q, want Bearer opaque-token", gotAuth)
	}
	if gotQuery.Get("status") != "pending" || gotQuery.Get("page") != "1" || gotQuery.Get("limit") != "25" {
		t.Errorf("query = %v", gotQuery)
	}
	if page.Total != 41 || page.TotalPages != 2 {
		t.Errorf("totals = %d/%d, want 41/2", page.Total, page.TotalPages)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(page.Items))
	}
	r := page.Items[0]
	if r.ID != "7" {
		t.Errorf("ID = %q, want 7", r.ID)
	}
	if r.OwnerName != "Ada L" || r.OwnerEmail != "a@example.com" {
		t.Errorf("owner = %q <%s>", r.OwnerName, r.OwnerEmail)
	}
}

func TestUnrecognisedStatusesStayInert(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/matches":
			io.WriteString(w, `{"items":[{"id":"m1","status":"archived"},{"id":"m2"},{"id":"m3","status":"Candidate"}]}`)
		case "/admin/reports":
			io.WriteString(w, `{"items":[{"id":"r1","status":"archived"},{"id":"r2"}]}`)
		}
	}, "tok")
	ctx := context.Background()

	matches, err := c.GetMatches(ctx, url.Values{})
	if err != nil {
		t.Fatalf("GetMatches: %v", err)
	}
	wantMatches := []struct {
		status     model.MatchStatus
		actionable bool
	}{
		{"archived", false},
		{model.MatchUnknown, false},
		{model.MatchCandidate, true},
	}
	for i, want := range wantMatches {
		m := matches.Items[i]
		if m.Status != want.status || m.Actionable() != want.actionable {
			t.Errorf("match %s: status %q actionable %v, want %q %v", m.ID, m.Status, m.Actionable(), want.status, want.actionable)
		}
	}

	reports, err := c.GetReports(ctx, url.Values{})
	if err != nil {
		t.Fatalf("GetReports: %v", err)
	}
	wantReports := []model.ReportStatus{"archived", model.ReportUnknown}
	for i, want := range wantReports {
		r := reports.Items[i]
		if r.Status != want {
			t.Errorf("report %s: status %q, want %q", r.ID, r.Status, want)
		}
		if next := model.NextReportStatuses(r.Status); len(next) != 0 {
			t.Errorf("report %s offers %v", r.ID, next)
		}
	}
}

func TestGetMatchesBareArrayAndScores(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"id":"m1","status":"candidate","overall_score":"NaN","text_score":null,"geo_score":"0.5",
			 "source_report":{"id":"r1","title":"Keys"}},
			{"id":"m2","status":"promoted","overall_score":0.875}
		]`)
	}, "tok")

	page, err := c.GetMatches(context.Background(), url.Values{"page": {"1"}, "limit": {"25"}})
	if err != nil {
		t.Fatalf("GetMatches: %v", err)
	}
	if page.Total != 2 || page.TotalPages != 1 {
		t.Errorf("totals = %d/%d, want 2/1", page.Total, page.TotalPages)
	}

	m1 := page.Items[0]
	if got := m1.Scores.Overall.Percent(); got != "0.0%" {
		t.Errorf("NaN overall renders %q, want 0.0%%", got)
	}
	if m1.Scores.Geo != 0.5 {
		t.Errorf("geo = %v, want 0.5", m1.Scores.Geo)
	}
	if m1.SourceReport.Title != "Keys" || m1.SourceReport.Category != model.UnknownField {
		t.Errorf("source ref = %+v", m1.SourceReport)
	}
	if m1.CandidateReport != model.UnknownReportRef() {
		t.Errorf("missing candidate = %+v, want Unknown placeholder", m1.CandidateReport)
	}
	if got := page.Items[1].Scores.Overall.Percent(); got != "87.5%" {
		t.Errorf("overall = %q, want 87.5%%", got)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		target  error
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"token invalid"}`, ErrUnauthorized, "token invalid"},
		{"forbidden", http.StatusForbidden, `{"error":"admins only"}`, ErrUnauthorized, "admins only"},
		{"not found", http.StatusNotFound, `{"message":"no such user"}`, ErrNotFound, "no such user"},
		{"server error", http.StatusInternalServerError, `boom`, nil, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}, "tok")

			err := c.DeleteUser(context.Background(), "u1")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.message {
				t.Errorf("got %d %q, want %d %q", apiErr.StatusCode, apiErr.Message, tt.status, tt.message)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.target)
			}
		})
	}
}

func TestExpiredTokenFailsLocally(t *testing.T) {
	var hits atomic.Int32
	expired := signedToken(t, time.Now().Add(-time.Minute))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, expired)

	_, err := c.GetUsers(context.Background(), nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("error = %v, want ErrSessionExpired", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestNoTokenFailsLocally(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}, "")

	if _, err := c.GetStatistics(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("error = %v, want ErrNoToken", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	if got := TokenExpiry(signedToken(t, exp)); !got.Equal(exp) {
		t.Errorf("TokenExpiry = %v, want %v", got, exp)
	}
	if got := TokenExpiry("not-a-jwt"); !got.IsZero() {
		t.Errorf("TokenExpiry(opaque) = %v, want zero", got)
	}
}

func TestLoginSkipsBearer(t *testing.T) {
	valid := signedToken(t, time.Now().Add(time.Hour))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login carried Authorization %q", r.Header.Get("Authorization"))
		}
		io.WriteString(w, `{"access_token":"`+valid+`","user":{"id":"u1","email":"root@example.com","role":"admin"}}`)
	}, "")

	res, err := c.Login(context.Background(), "root@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != valid || res.ExpiresAt.IsZero() {
		t.Errorf("result = %+v", res)
	}
	if res.User.Role != model.RoleAdmin || res.User.DisplayName != "root@example.com" {
		t.Errorf("user = %+v", res.User)
	}
}

func TestCurrentUserCached(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"id":"u1","email":"mod@example.com","display_name":"Mod","role":"moderator"}`)
	}, "tok")

	for i := 0; i < 3; i++ {
		u, err := c.CurrentUser(context.Background(), "tok")
		if err != nil {
			t.Fatalf("CurrentUser: %v", err)
		}
		if u.DisplayName != "Mod" {
			t.Errorf("DisplayName = %q", u.DisplayName)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}

	c.ForgetUser("tok")
	if _, err := c.CurrentUser(context.Background(), "tok"); err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hit %d times after ForgetUser, want 2", hits.Load())
	}
}

func TestCurrentUserAuthenticatesWithGivenToken(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer candidate-tok" {
			t.Errorf("Authorization = %q, want the token being checked", got)
		}
		io.WriteString(w, `{"id":"u2","email":"mod@example.com","role":"moderator"}`)
	}, "stored-admin-tok")

	u, err := c.CurrentUser(context.Background(), "candidate-tok")
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if u.ID != "u2" || u.Role != model.RoleModerator {
		t.Errorf("user = %+v", u)
	}

	expired := signedToken(t, time.Now().Add(-time.Minute))
	if _, err := c.CurrentUser(context.Background(), expired); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expired token: err = %v, want ErrSessionExpired", err)
	}
	if _, err := c.CurrentUser(context.Background(), ""); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty token: err = %v, want ErrNoToken", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}
}

func TestAuditLogNormalization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"items":[
			{"id":1,"action":"REPORT_APPROVED","resource":"report","user_id":42,"reason":"looks fine","metadata":{"ip":"10.0.0.1"}},
			{"id":2,"action":"delete_user","resource_type":"user","actor_id":"a9","details":"spam","metadata":null}
		]}`)
	}, "tok")

	page, err := c.GetAuditLogs(context.Background(), url.Values{"action": {"approve"}})
	if err != nil {
		t.Fatalf("GetAuditLogs: %v", err)
	}

	first, second := page.Items[0], page.Items[1]
	if first.ResourceType != "report" || first.ActorID != "42" || first.Details != "looks fine" {
		t.Errorf("first = %+v", first)
	}
	if first.Category != model.ActionApprove {
		t.Errorf("first category = %q", first.Category)
	}
	if string(first.Metadata) != `{"ip":"10.0.0.1"}` {
		t.Errorf("metadata = %s", first.Metadata)
	}
	if second.ResourceType != "user" || second.ActorID != "a9" || second.Details != "spam" {
		t.Errorf("second = %+v", second)
	}
	if second.Metadata != nil {
		t.Errorf("null metadata = %s, want nil", second.Metadata)
	}
}

func TestGetDashboardDataShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"nested", `{"statistics":{"reports":{"total":10,"pending":3}},"recent_activity":[{"id":"a1","action":"create_report"}]}`},
		{"flat", `{"reports":{"total":10,"pending":3},"recent_activity":[{"id":"a1","action":"create_report"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}, "tok")

			data, err := c.GetDashboardData(context.Background())
			if err != nil {
				t.Fatalf("GetDashboardData: %v", err)
			}
			if data.Statistics.Reports.Total != 10 || data.Statistics.Reports.Pending != 3 {
				t.Errorf("reports = %+v", data.Statistics.Reports)
			}
			if len(data.RecentActivity) != 1 || data.RecentActivity[0].Category != model.ActionCreate {
				t.Errorf("recent = %+v", data.RecentActivity)
			}
		})
	}
}

func TestFlagReportBody(t *testing.T) {
	var body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admin/fraud-detection/f1/review" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusNoContent)
	}, "tok")

	if err := c.FlagReport(context.Background(), "f1", model.VerdictConfirmed, "same photo reused"); err != nil {
		t.Fatalf("FlagReport: %v", err)
	}
	if body != `{"status":"confirmed","admin_notes":"same photo reused"}` {
		t.Errorf("body = %s", body)
	}
}
