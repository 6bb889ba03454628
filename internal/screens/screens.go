// Package screens instantiates the list-view controller for every admin
// screen and wires each one to the Lost & Found API.
package screens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/listview"
	"github.com/lostfound/admin-console/internal/model"
)

// ErrTransitionNotAllowed is returned when the console refuses a status
// change locally, without calling the API.
var ErrTransitionNotAllowed = errors.New("screens: transition not allowed")

// API is the part of the REST client the screens call.
type API interface {
	GetReports(ctx context.Context, q url.Values) (api.Page[model.Report], error)
	UpdateReport(ctx context.Context, id string, status model.ReportStatus) error
	DeleteReport(ctx context.Context, id string) error
	GetReportMatches(ctx context.Context, id string) ([]model.Match, error)
	GetReportFraud(ctx context.Context, id string) (model.FraudResult, error)

	GetMatches(ctx context.Context, q url.Values) (api.Page[model.Match], error)
	UpdateMatch(ctx context.Context, id string, status model.MatchStatus) error
	TriggerMatchingForAll(ctx context.Context) (api.MatchingRun, error)
	ClearAllMatches(ctx context.Context) error
	GetMatchStats(ctx context.Context) (model.MatchStats, error)

	GetUsers(ctx context.Context, q url.Values) (api.Page[model.User], error)
	UpdateUser(ctx context.Context, id string, patch api.UserPatch) error
	CreateUser(ctx context.Context, u api.NewUser) (model.User, error)
	DeleteUser(ctx context.Context, id string) error
	GetUserStats(ctx context.Context, id string) (model.UserActivity, error)

	GetFraudReports(ctx context.Context, q url.Values) (api.Page[model.FraudResult], error)
	FlagReport(ctx context.Context, id string, verdict model.FraudVerdict, notes string) error

	GetAuditLogs(ctx context.Context, q url.Values) (api.Page[model.AuditLog], error)

	GetStatistics(ctx context.Context) (model.Statistics, error)
	GetDashboardData(ctx context.Context) (model.DashboardData, error)
}

// Journal keeps the console's own record of the actions it issued.
type Journal interface {
	RecordAction(ctx context.Context, action *model.ConsoleAction) error
	ListRecentActions(ctx context.Context, limit int) ([]*model.ConsoleAction, error)
}

// Notifier is told about bulk actions that left items unchanged.
type Notifier interface {
	BulkFailures(ctx context.Context, action *model.ConsoleAction) error
}

// Options configure a Workspace.
type Options struct {
	// PageSize is the list page size for every screen.
	PageSize int
	// BulkConcurrency bounds concurrent API calls in bulk actions.
	BulkConcurrency int
	// RealtimeInterval is the refresh period of real-time screens.
	RealtimeInterval time.Duration
	// Journal and Notifier are optional.
	Journal  Journal
	Notifier Notifier
	Logger   *slog.Logger
}

func controllerOptions[T any](o Options, name string, id func(T) string) listview.Options[T] {
	return listview.Options[T]{
		Name:            name,
		ID:              id,
		Limit:           o.PageSize,
		BulkConcurrency: o.BulkConcurrency,
		Logger:          o.Logger,
	}
}

// listFrom adapts an API list call to a listview list function.
func listFrom[T any](fetch func(context.Context, url.Values) (api.Page[T], error)) func(context.Context, listview.Query) (listview.Page[T], error) {
	return func(ctx context.Context, q listview.Query) (listview.Page[T], error) {
		p, err := fetch(ctx, q.Values())
		if err != nil {
			return listview.Page[T]{}, err
		}
		return listview.Page[T]{Items: p.Items, Total: p.Total, TotalPages: p.TotalPages}, nil
	}
}

// recorder journals console actions and mails a digest for failed bulk
// actions. Both sinks are optional.
type recorder struct {
	journal  Journal
	notifier Notifier
	logger   *slog.Logger
}

func (r *recorder) transition(ctx context.Context, screen, action, id string, err error) {
	a := &model.ConsoleAction{
		Screen:    screen,
		Action:    action,
		TargetIDs: []string{id},
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		a.FailedIDs = []string{id}
		a.Error = err.Error()
	}
	r.record(ctx, a)
}

func (r *recorder) bulk(ctx context.Context, screen, action string, res listview.BulkResult) {
	failed := res.FailedIDs()
	targets := append(append([]string(nil), res.Succeeded...), failed...)
	if len(targets) == 0 {
		return
	}
	a := &model.ConsoleAction{
		Screen:    screen,
		Action:    "bulk:" + action,
		TargetIDs: targets,
		FailedIDs: failed,
		CreatedAt: time.Now().UTC(),
	}
	if err := res.Err(); err != nil {
		a.Error = err.Error()
	}
	r.record(ctx, a)

	if r.notifier != nil && a.Failed() {
		if err := r.notifier.BulkFailures(context.WithoutCancel(ctx), a); err != nil {
			r.logger.Error("bulk failure digest not sent", "screen", screen, "action", a.Action, "error", err)
		}
	}
}

func (r *recorder) record(ctx context.Context, a *model.ConsoleAction) {
	if r.journal == nil {
		return
	}
	if err := r.journal.RecordAction(context.WithoutCancel(ctx), a); err != nil {
		r.logger.Error("journal console action", "screen", a.Screen, "action", a.Action, "error", err)
	}
}

// notAllowed builds an ErrTransitionNotAllowed error.
func notAllowed(kind, id string, from, to any) error {
	return fmt.Errorf("%w: %s %s is %v, cannot move to %v", ErrTransitionNotAllowed, kind, id, from, to)
}
