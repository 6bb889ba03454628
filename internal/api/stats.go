package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/lostfound/admin-console/internal/model"
)

type wireReportStats struct {
	Total    flexInt `json:"total"`
	Pending  flexInt `json:"pending"`
	Approved flexInt `json:"approved"`
	Rejected flexInt `json:"rejected"`
	Resolved flexInt `json:"resolved"`
	Hidden   flexInt `json:"hidden"`
	Lost     flexInt `json:"lost"`
	Found    flexInt `json:"found"`
	ByType   struct {
		Lost  flexInt `json:"lost"`
		Found flexInt `json:"found"`
	} `json:"by_type"`
}

func (w wireReportStats) toModel() model.ReportStats {
	return model.ReportStats{
		Total:    int(w.Total),
		Pending:  int(w.Pending),
		Approved: int(w.Approved),
		Rejected: int(w.Rejected),
		Resolved: int(w.Resolved),
		Hidden:   int(w.Hidden),
		Lost:     int(max(w.Lost, w.ByType.Lost)),
		Found:    int(max(w.Found, w.ByType.Found)),
	}
}

type wireUserStats struct {
	Total      flexInt `json:"total"`
	Active     flexInt `json:"active"`
	Inactive   flexInt `json:"inactive"`
	Verified   flexInt `json:"verified"`
	Admins     flexInt `json:"admins"`
	Moderators flexInt `json:"moderators"`
}

func (w wireUserStats) toModel() model.UserStats {
	s := model.UserStats{
		Total:      int(w.Total),
		Active:     int(w.Active),
		Inactive:   int(w.Inactive),
		Verified:   int(w.Verified),
		Admins:     int(w.Admins),
		Moderators: int(w.Moderators),
	}
	if s.Inactive == 0 && s.Total > s.Active {
		s.Inactive = s.Total - s.Active
	}
	return s
}

type wireFraudStats struct {
	Total       flexInt            `json:"total"`
	Unreviewed  flexInt            `json:"unreviewed"`
	Pending     flexInt            `json:"pending_review"`
	Confirmed   flexInt            `json:"confirmed"`
	ByRiskLevel map[string]flexInt `json:"by_risk_level"`
}

func (w wireFraudStats) toModel() model.FraudStats {
	s := model.FraudStats{
		Total:      int(w.Total),
		Unreviewed: int(max(w.Unreviewed, w.Pending)),
		Confirmed:  int(w.Confirmed),
		ByRisk:     make(map[model.RiskLevel]int, len(w.ByRiskLevel)),
	}
	for level, n := range w.ByRiskLevel {
		s.ByRisk[model.RiskLevel(level)] = int(n)
	}
	return s
}

type wireStatistics struct {
	Reports wireReportStats `json:"reports"`
	Matches wireMatchStats  `json:"matches"`
	Users   wireUserStats   `json:"users"`
	Fraud   wireFraudStats  `json:"fraud"`
}

func (w wireStatistics) toModel() model.Statistics {
	return model.Statistics{
		Reports: w.Reports.toModel(),
		Matches: w.Matches.toModel(),
		Users:   w.Users.toModel(),
		Fraud:   w.Fraud.toModel(),
	}
}

// GetStatistics returns the aggregate counters for every collection.
func (c *Client) GetStatistics(ctx context.Context) (model.Statistics, error) {
	var w wireStatistics
	if err := c.get(ctx, "/admin/statistics", nil, &w); err != nil {
		return model.Statistics{}, fmt.Errorf("get statistics: %w", err)
	}
	return w.toModel(), nil
}

// wireDashboard accepts both {statistics, recent_activity} and a flat body
// where the statistics sit at the top level.
type wireDashboard struct {
	Statistics     *wireStatistics `json:"statistics"`
	Stats          *wireStatistics `json:"stats"`
	RecentActivity []wireAudit     `json:"recent_activity"`
	flat           wireStatistics
}

func (w *wireDashboard) UnmarshalJSON(b []byte) error {
	type plain wireDashboard
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*w = wireDashboard(p)
	if w.Statistics == nil && w.Stats == nil && bytes.HasPrefix(bytes.TrimSpace(b), []byte("{")) {
		return json.Unmarshal(b, &w.flat)
	}
	return nil
}

// GetDashboardData returns the landing page summary. A missing activity
// list comes back empty rather than nil.
func (c *Client) GetDashboardData(ctx context.Context) (model.DashboardData, error) {
	var w wireDashboard
	if err := c.get(ctx, "/admin/dashboard", nil, &w); err != nil {
		return model.DashboardData{}, fmt.Errorf("get dashboard: %w", err)
	}

	stats := w.flat
	switch {
	case w.Statistics != nil:
		stats = *w.Statistics
	case w.Stats != nil:
		stats = *w.Stats
	}
	data := model.DashboardData{
		Statistics:     stats.toModel(),
		RecentActivity: make([]model.AuditLog, 0, len(w.RecentActivity)),
	}
	for _, a := range w.RecentActivity {
		data.RecentActivity = append(data.RecentActivity, a.toModel())
	}
	return data, nil
}
