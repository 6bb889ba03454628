package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lostfound/admin-console/internal/model"
)

type wireReport struct {
	ID            flexString `json:"id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	FraudStatus   string     `json:"fraud_status"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	LocationCity  string     `json:"location_city"`
	RewardOffered flexBool   `json:"reward_offered"`
	Owner         *wireUser  `json:"owner"`
	OwnerEmail    string     `json:"owner_email"`
	CreatedAt     flexTime   `json:"created_at"`
	UpdatedAt     flexTime   `json:"updated_at"`
}

func (w wireReport) toModel() model.Report {
	r := model.Report{
		ID:            string(w.ID),
		Type:          model.ReportType(w.Type),
		Status:        model.ReportStatus(statusOrUnknown(w.Status)),
		FraudStatus:   model.FraudStatus(w.FraudStatus),
		Title:         w.Title,
		Description:   w.Description,
		Category:      w.Category,
		LocationCity:  w.LocationCity,
		RewardOffered: bool(w.RewardOffered),
		OwnerEmail:    w.OwnerEmail,
		CreatedAt:     w.CreatedAt.Time,
		UpdatedAt:     w.UpdatedAt.Time,
	}
	if w.Owner != nil {
		r.OwnerEmail = firstNonEmpty(w.Owner.Email, w.OwnerEmail)
		r.OwnerName = w.Owner.displayName()
	}
	if r.OwnerName == "" {
		r.OwnerName = r.OwnerEmail
	}
	return r
}

// wireReportRef is the report summary embedded in a match. A nil ref becomes
// the Unknown placeholder.
type wireReportRef struct {
	ID           flexString `json:"id"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	LocationCity string     `json:"location_city"`
	Type         string     `json:"type"`
}

func (w *wireReportRef) toModel() model.ReportRef {
	ref := model.UnknownReportRef()
	if w == nil {
		return ref
	}
	ref.ID = string(w.ID)
	ref.Title = firstNonEmpty(w.Title, ref.Title)
	ref.Category = firstNonEmpty(w.Category, ref.Category)
	ref.LocationCity = firstNonEmpty(w.LocationCity, ref.LocationCity)
	ref.Type = firstNonEmpty(w.Type, ref.Type)
	return ref
}

type statusPatch struct {
	Status string `json:"status"`
}

// GetReports lists reports matching the query (search, status, type, page, limit).
func (c *Client) GetReports(ctx context.Context, q url.Values) (Page[model.Report], error) {
	var raw rawPage[wireReport]
	if err := c.get(ctx, "/admin/reports", q, &raw); err != nil {
		return Page[model.Report]{}, fmt.Errorf("get reports: %w", err)
	}
	page, limit := pageParams(q)
	return decodePage(raw, page, limit, wireReport.toModel), nil
}

// UpdateReport moves one report to status.
func (c *Client) UpdateReport(ctx context.Context, id string, status model.ReportStatus) error {
	body := statusPatch{Status: string(status)}
	if err := c.send(ctx, http.MethodPatch, "/admin/reports/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	return nil
}

// DeleteReport removes one report.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	if err := c.send(ctx, http.MethodDelete, "/admin/reports/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	return nil
}

// GetReportMatches returns the matches that involve one report.
func (c *Client) GetReportMatches(ctx context.Context, id string) ([]model.Match, error) {
	var raw rawPage[wireMatch]
	if err := c.get(ctx, "/admin/reports/"+url.PathEscape(id)+"/matches", nil, &raw); err != nil {
		return nil, fmt.Errorf("get report matches %s: %w", id, err)
	}
	return decodePage(raw, 1, 0, wireMatch.toModel).Items, nil
}

// GetReportFraud returns the fraud detection result for one report. A report
// that was never scored yields an error matching ErrNotFound.
func (c *Client) GetReportFraud(ctx context.Context, id string) (model.FraudResult, error) {
	var w wireFraud
	if err := c.get(ctx, "/admin/reports/"+url.PathEscape(id)+"/fraud", nil, &w); err != nil {
		return model.FraudResult{}, fmt.Errorf("get report fraud %s: %w", id, err)
	}
	res := w.toModel()
	if res.ReportID == "" {
		res.ReportID = id
	}
	return res, nil
}
