package screens

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/listview"
	"github.com/lostfound/admin-console/internal/model"
)

// ReportFilterKeys are the query parameters the reports list accepts.
var ReportFilterKeys = []string{"search", "status", "type"}

// bulkReportStatuses are the statuses the bulk toolbar offers.
var bulkReportStatuses = map[model.ReportStatus]bool{
	model.ReportApproved: true,
	model.ReportRejected: true,
	model.ReportHidden:   true,
}

// ReportDetail is the report modal: the report plus its matches and fraud
// result. Fraud is nil when the detector has no result for the report.
type ReportDetail struct {
	Report  model.Report
	Matches []model.Match
	Fraud   *model.FraudResult
}

// Reports is the reports moderation screen.
type Reports struct {
	*listview.Controller[model.Report, model.ReportStats]
	Detail *listview.Detail[ReportDetail]

	api API
	rec *recorder
}

func newReports(a API, rec *recorder, o Options) *Reports {
	src := listview.SourceFuncs[model.Report, model.ReportStats]{
		ListFunc: listFrom(a.GetReports),
		StatsFunc: func(ctx context.Context, _ listview.Query) (model.ReportStats, error) {
			s, err := a.GetStatistics(ctx)
			return s.Reports, err
		},
	}
	s := &Reports{
		Controller: listview.NewController(src, controllerOptions(o, "reports", func(r model.Report) string { return r.ID })),
		api:        a,
		rec:        rec,
	}
	s.Detail = listview.NewDetail(s.loadDetail, o.Logger)
	return s
}

func (s *Reports) loadDetail(ctx context.Context, id string) (ReportDetail, error) {
	d := ReportDetail{Report: model.Report{ID: id}}
	if r, ok := s.Find(id); ok {
		d.Report = r
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.api.GetReportMatches(ctx, id)
		if err != nil {
			return err
		}
		d.Matches = m
		return nil
	})
	g.Go(func() error {
		f, err := s.api.GetReportFraud(ctx, id)
		if errors.Is(err, api.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		d.Fraud = &f
		return nil
	})
	if err := g.Wait(); err != nil {
		return ReportDetail{}, fmt.Errorf("load report %s: %w", id, err)
	}
	return d, nil
}

// SetStatus moves one report to status. A move the console does not offer
// from the row's current status is refused locally.
func (s *Reports) SetStatus(ctx context.Context, id string, to model.ReportStatus) error {
	if r, ok := s.Find(id); ok && !model.CanTransitionReport(r.Status, to) {
		return notAllowed("report", id, r.Status, to)
	}
	err := s.Transition(ctx, id, func(ctx context.Context, id string) error {
		return s.api.UpdateReport(ctx, id, to)
	})
	s.rec.transition(ctx, s.Name(), "status:"+string(to), id, err)
	return err
}

// Delete removes one report.
func (s *Reports) Delete(ctx context.Context, id string) error {
	err := s.Transition(ctx, id, s.api.DeleteReport)
	s.rec.transition(ctx, s.Name(), "delete", id, err)
	return err
}

// BulkSetStatus applies status to every selected report. Selected rows whose
// current status does not allow the move fail locally with
// ErrTransitionNotAllowed; the others are sent to the API.
func (s *Reports) BulkSetStatus(ctx context.Context, to model.ReportStatus) (listview.BulkResult, error) {
	if !bulkReportStatuses[to] {
		return listview.BulkResult{}, fmt.Errorf("%w: bulk %s", ErrTransitionNotAllowed, to)
	}
	res := s.Bulk(ctx, func(ctx context.Context, id string) error {
		if r, ok := s.Find(id); ok && !model.CanTransitionReport(r.Status, to) {
			return notAllowed("report", id, r.Status, to)
		}
		return s.api.UpdateReport(ctx, id, to)
	})
	s.rec.bulk(ctx, s.Name(), string(to), res)
	return res, nil
}

// BulkDelete deletes every selected report.
func (s *Reports) BulkDelete(ctx context.Context) listview.BulkResult {
	res := s.Bulk(ctx, s.api.DeleteReport)
	s.rec.bulk(ctx, s.Name(), "delete", res)
	return res
}
