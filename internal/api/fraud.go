package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lostfound/admin-console/internal/model"
)

type wireFraud struct {
	ID               flexString `json:"id"`
	ReportID         flexString `json:"report_id"`
	RiskLevel        string     `json:"risk_level"`
	FraudScore       flexFloat  `json:"fraud_score"`
	Confidence       flexFloat  `json:"confidence"`
	Flags            []string   `json:"flags"`
	IsReviewed       flexBool   `json:"is_reviewed"`
	IsConfirmedFraud flexBool   `json:"is_confirmed_fraud"`
	ReviewedBy       flexString `json:"reviewed_by"`
	ReviewedAt       *flexTime  `json:"reviewed_at"`
	AdminNotes       string     `json:"admin_notes"`
	CreatedAt        flexTime   `json:"created_at"`
}

func (w wireFraud) toModel() model.FraudResult {
	flags := w.Flags
	if flags == nil {
		flags = []string{}
	}
	return model.FraudResult{
		ID:               string(w.ID),
		ReportID:         string(w.ReportID),
		RiskLevel:        model.RiskLevel(w.RiskLevel),
		FraudScore:       float64(w.FraudScore),
		Confidence:       model.Score(w.Confidence),
		Flags:            flags,
		IsReviewed:       bool(w.IsReviewed),
		IsConfirmedFraud: bool(w.IsConfirmedFraud),
		ReviewedBy:       string(w.ReviewedBy),
		ReviewedAt:       w.ReviewedAt.ptr(),
		AdminNotes:       w.AdminNotes,
		CreatedAt:        w.CreatedAt.Time,
	}
}

type flagRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes,omitempty"`
}

// GetFraudReports lists fraud detection results (risk_level, is_reviewed, page, limit).
func (c *Client) GetFraudReports(ctx context.Context, q url.Values) (Page[model.FraudResult], error) {
	var raw rawPage[wireFraud]
	if err := c.get(ctx, "/admin/fraud-detection", q, &raw); err != nil {
		return Page[model.FraudResult]{}, fmt.Errorf("get fraud reports: %w", err)
	}
	page, limit := pageParams(q)
	return decodePage(raw, page, limit, wireFraud.toModel), nil
}

// FlagReport records the admin verdict on one fraud result.
func (c *Client) FlagReport(ctx context.Context, id string, verdict model.FraudVerdict, notes string) error {
	body := flagRequest{Status: string(verdict), AdminNotes: notes}
	if err := c.send(ctx, http.MethodPost, "/admin/fraud-detection/"+url.PathEscape(id)+"/review", body, nil); err != nil {
		return fmt.Errorf("flag report %s: %w", id, err)
	}
	return nil
}
