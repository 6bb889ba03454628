package screens

import (
	"context"

	"github.com/lostfound/admin-console/internal/listview"
	"github.com/lostfound/admin-console/internal/model"
)

const recentActionsLimit = 10

// Dashboard is the landing screen. Its stats are the server's dashboard
// summary; its rows are the latest actions issued from this console.
type Dashboard struct {
	*listview.Controller[*model.ConsoleAction, model.DashboardData]
	Realtime *listview.Poller
}

func newDashboard(a API, journal Journal, o Options) *Dashboard {
	src := listview.SourceFuncs[*model.ConsoleAction, model.DashboardData]{
		ListFunc: func(ctx context.Context, _ listview.Query) (listview.Page[*model.ConsoleAction], error) {
			if journal == nil {
				return listview.Page[*model.ConsoleAction]{}, nil
			}
			actions, err := journal.ListRecentActions(ctx, recentActionsLimit)
			if err != nil {
				return listview.Page[*model.ConsoleAction]{}, err
			}
			return listview.Page[*model.ConsoleAction]{Items: actions, Total: len(actions), TotalPages: 1}, nil
		},
		StatsFunc: func(ctx context.Context, _ listview.Query) (model.DashboardData, error) {
			return a.GetDashboardData(ctx)
		},
	}
	opts := controllerOptions(o, "dashboard", func(a *model.ConsoleAction) string { return a.ID })
	opts.ErrorMessage = "Failed to fetch dashboard data"
	opts.Limit = recentActionsLimit
	s := &Dashboard{Controller: listview.NewController(src, opts)}
	s.Realtime = listview.NewPoller(s.Name(), o.RealtimeInterval, s.Refresh, o.Logger)
	return s
}

// SetRealtime turns periodic refresh on or off.
func (s *Dashboard) SetRealtime(ctx context.Context, on bool) {
	setRealtime(ctx, s.Realtime, on)
}
