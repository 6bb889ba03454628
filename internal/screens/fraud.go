package screens

import (
	"context"
	"errors"
	"fmt"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/listview"
	"github.com/lostfound/admin-console/internal/model"
)

// FraudFilterKeys are the query parameters the fraud list accepts.
var FraudFilterKeys = []string{"risk_level", "is_reviewed"}

// Fraud is the fraud detection review screen.
type Fraud struct {
	*listview.Controller[model.FraudResult, model.FraudStats]
	Detail *listview.Detail[model.FraudResult]

	api API
	rec *recorder
}

func newFraud(a API, rec *recorder, o Options) *Fraud {
	src := listview.SourceFuncs[model.FraudResult, model.FraudStats]{
		ListFunc: listFrom(a.GetFraudReports),
		StatsFunc: func(ctx context.Context, _ listview.Query) (model.FraudStats, error) {
			s, err := a.GetStatistics(ctx)
			return s.Fraud, err
		},
	}
	s := &Fraud{
		Controller: listview.NewController(src, controllerOptions(o, "fraud", func(f model.FraudResult) string { return f.ID })),
		api:        a,
		rec:        rec,
	}
	s.Detail = listview.NewDetail(s.loadAnalysis, o.Logger)
	return s
}

// loadAnalysis fetches the latest detector output for the row's report.
func (s *Fraud) loadAnalysis(ctx context.Context, id string) (model.FraudResult, error) {
	row, ok := s.Find(id)
	if !ok {
		return model.FraudResult{}, fmt.Errorf("load fraud result %s: %w", id, api.ErrNotFound)
	}
	if row.ReportID == "" {
		return row, nil
	}
	fresh, err := s.api.GetReportFraud(ctx, row.ReportID)
	if errors.Is(err, api.ErrNotFound) {
		return row, nil
	}
	if err != nil {
		return model.FraudResult{}, fmt.Errorf("load fraud result %s: %w", id, err)
	}
	return fresh, nil
}

// Review records the admin verdict on one detection result. Results that
// were already reviewed are refused locally.
func (s *Fraud) Review(ctx context.Context, id, verdict, notes string) error {
	v, ok := model.ParseFraudVerdict(verdict)
	if !ok {
		return fmt.Errorf("%w: unknown verdict %q", ErrTransitionNotAllowed, verdict)
	}
	if f, found := s.Find(id); found && f.IsReviewed {
		return notAllowed("fraud result", id, "reviewed", v)
	}
	err := s.Transition(ctx, id, func(ctx context.Context, id string) error {
		return s.api.FlagReport(ctx, id, v, notes)
	})
	s.rec.transition(ctx, s.Name(), "review:"+string(v), id, err)
	return err
}
