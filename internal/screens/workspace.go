package screens

import (
	"context"
	"log/slog"
	"sync"
)

// Screen names as used in routes and the real-time toggle.
const (
	ScreenDashboard = "dashboard"
	ScreenReports   = "reports"
	ScreenMatches   = "matches"
	ScreenUsers     = "users"
	ScreenFraud     = "fraud"
	ScreenAudit     = "audit"
)

// Workspace owns every screen of the console. There is one workspace per
// process; it is shared by every request of the signed-in operator.
type Workspace struct {
	Dashboard *Dashboard
	Reports   *Reports
	Matches   *Matches
	Users     *Users
	Fraud     *Fraud
	Audit     *Audit

	logger *slog.Logger

	// ctx outlives requests; pollers started from a request run under it.
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewWorkspace builds every screen over a.
func NewWorkspace(a API, opts Options) *Workspace {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	rec := &recorder{journal: opts.Journal, notifier: opts.Notifier, logger: opts.Logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Workspace{
		Dashboard: newDashboard(a, opts.Journal, opts),
		Reports:   newReports(a, rec, opts),
		Matches:   newMatches(a, rec, opts),
		Users:     newUsers(a, rec, opts),
		Fraud:     newFraud(a, rec, opts),
		Audit:     newAudit(a, opts),
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetRealtime turns periodic refresh on or off for a real-time screen. It
// returns false for screens without real-time support.
func (w *Workspace) SetRealtime(screen string, on bool) bool {
	switch screen {
	case ScreenMatches:
		w.Matches.SetRealtime(w.ctx, on)
	case ScreenDashboard:
		w.Dashboard.SetRealtime(w.ctx, on)
	default:
		return false
	}
	w.logger.Info("real-time refresh toggled", "screen", screen, "enabled", on)
	return true
}

// Realtime reports whether periodic refresh is on for screen.
func (w *Workspace) Realtime(screen string) bool {
	switch screen {
	case ScreenMatches:
		return w.Matches.Realtime.Running()
	case ScreenDashboard:
		return w.Dashboard.Realtime.Running()
	}
	return false
}

// CloseDetails closes every open detail modal.
func (w *Workspace) CloseDetails() {
	w.Reports.Detail.Close()
	w.Matches.Detail.Close()
	w.Users.Detail.Close()
	w.Fraud.Detail.Close()
	w.Audit.Detail.Close()
}

// Reset drops the operator's transient state, for use on sign-out: pollers
// stop, modals close and selections clear.
func (w *Workspace) Reset() {
	w.Matches.Realtime.Stop()
	w.Dashboard.Realtime.Stop()
	w.CloseDetails()
	w.Reports.ClearSelection()
	w.Matches.ClearSelection()
	w.Users.ClearSelection()
	w.Fraud.ClearSelection()
}

// Shutdown stops all background work. It is safe to call more than once.
func (w *Workspace) Shutdown() {
	w.stopOnce.Do(func() {
		w.Reset()
		w.cancel()
		w.logger.Info("workspace stopped")
	})
}
