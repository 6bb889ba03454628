package screens

import (
	"context"
	"fmt"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/listview"
	"github.com/lostfound/admin-console/internal/model"
)

// MatchFilterKeys are the query parameters the matches list accepts.
var MatchFilterKeys = []string{"status", "min_score"}

// MatchAnalysis is the matching analysis modal: the match with its score
// breakdown, and the other candidates proposed for the same source report.
type MatchAnalysis struct {
	Match    model.Match
	Siblings []model.Match
}

// Matches is the matching review screen. It supports real-time refresh.
type Matches struct {
	*listview.Controller[model.Match, model.MatchStats]
	Detail   *listview.Detail[MatchAnalysis]
	Realtime *listview.Poller

	api API
	rec *recorder
}

func newMatches(a API, rec *recorder, o Options) *Matches {
	src := listview.SourceFuncs[model.Match, model.MatchStats]{
		ListFunc: listFrom(a.GetMatches),
		StatsFunc: func(ctx context.Context, _ listview.Query) (model.MatchStats, error) {
			return a.GetMatchStats(ctx)
		},
	}
	s := &Matches{
		Controller: listview.NewController(src, controllerOptions(o, "matches", func(m model.Match) string { return m.ID })),
		api:        a,
		rec:        rec,
	}
	s.Detail = listview.NewDetail(s.loadAnalysis, o.Logger)
	s.Realtime = listview.NewPoller(s.Name(), o.RealtimeInterval, s.Refresh, o.Logger)
	return s
}

// loadAnalysis re-reads the source report's candidates so the modal shows
// fresh scores rather than the row as it was when the list was fetched.
func (s *Matches) loadAnalysis(ctx context.Context, id string) (MatchAnalysis, error) {
	row, ok := s.Find(id)
	if !ok {
		return MatchAnalysis{}, fmt.Errorf("load match %s: %w", id, api.ErrNotFound)
	}
	if row.SourceReport.ID == "" {
		return MatchAnalysis{Match: row}, nil
	}
	all, err := s.api.GetReportMatches(ctx, row.SourceReport.ID)
	if err != nil {
		return MatchAnalysis{}, fmt.Errorf("load match %s: %w", id, err)
	}
	a := MatchAnalysis{Match: row}
	for _, m := range all {
		if m.ID == id {
			a.Match = m
			continue
		}
		a.Siblings = append(a.Siblings, m)
	}
	return a, nil
}

// SetStatus promotes or suppresses one match. Only candidates accept either
// move; anything else is refused locally.
func (s *Matches) SetStatus(ctx context.Context, id string, to model.MatchStatus) error {
	if to != model.MatchPromoted && to != model.MatchSuppressed {
		return notAllowed("match", id, "any status", to)
	}
	if m, ok := s.Find(id); ok && !m.Actionable() {
		return notAllowed("match", id, m.Status, to)
	}
	err := s.Transition(ctx, id, func(ctx context.Context, id string) error {
		return s.api.UpdateMatch(ctx, id, to)
	})
	s.rec.transition(ctx, s.Name(), "status:"+string(to), id, err)
	return err
}

// TriggerAll asks the server to run matching for every report, then
// refetches.
func (s *Matches) TriggerAll(ctx context.Context) (api.MatchingRun, error) {
	run, err := s.api.TriggerMatchingForAll(ctx)
	s.rec.transition(ctx, s.Name(), "trigger_all", "*", err)
	_ = s.Refresh(ctx)
	return run, err
}

// ClearAll deletes every match, then refetches.
func (s *Matches) ClearAll(ctx context.Context) error {
	err := s.api.ClearAllMatches(ctx)
	s.rec.transition(ctx, s.Name(), "clear_all", "*", err)
	_ = s.Refresh(ctx)
	return err
}

// SetRealtime turns periodic refresh on or off. ctx bounds the poller's
// lifetime when turning it on.
func (s *Matches) SetRealtime(ctx context.Context, on bool) {
	setRealtime(ctx, s.Realtime, on)
}

func setRealtime(ctx context.Context, p *listview.Poller, on bool) {
	if on {
		p.Start(ctx)
		return
	}
	p.Stop()
}
