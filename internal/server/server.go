package server

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/admin-console/internal/admin"
	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/model"
	"github.com/lostfound/admin-console/internal/prefs"
	"github.com/lostfound/admin-console/internal/screens"
)

// Config holds server configuration.
type Config struct {
	ListenAddr         string
	BaseURL            string
	SessionSecret      string
	LoginRatePerMinute int
}

// AuthAPI is the part of the REST client the login flow needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
	CurrentUser(ctx context.Context, token string) (model.User, error)
	ForgetUser(token string)
}

// Pinger reports whether local storage is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server wires into its handlers.
type Deps struct {
	API       AuthAPI
	Prefs     *prefs.Store
	Workspace *screens.Workspace
	Health    Pinger
	Logger    *slog.Logger
}

// Server is the admin console's HTTP server.
type Server struct {
	config    Config
	api       AuthAPI
	prefs     *prefs.Store
	ws        *screens.Workspace
	health    Pinger
	logger    *slog.Logger
	templates *template.Template
	rl        *RateLimiter
	router    chi.Router
	staticFS  fs.FS
}

// NewServer creates a Server from the given config, collaborators and
// embedded assets.
func NewServer(cfg Config, deps Deps, templatesFS fs.FS, staticFS fs.FS) (*Server, error) {
	if deps.API == nil || deps.Prefs == nil || deps.Workspace == nil {
		return nil, fmt.Errorf("server: API, preferences and workspace are required")
	}
	tmpl, err := admin.ParseTemplates(templatesFS)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rlCfg := DefaultRateLimiterConfig()
	if cfg.LoginRatePerMinute > 0 {
		rlCfg.LoginAttemptsPerMin = cfg.LoginRatePerMinute
	}

	srv := &Server{
		config:    cfg,
		api:       deps.API,
		prefs:     deps.Prefs,
		ws:        deps.Workspace,
		health:    deps.Health,
		logger:    logger,
		templates: tmpl,
		rl:        NewRateLimiter(rlCfg),
		staticFS:  staticFS,
	}
	srv.router = srv.routes()
	return srv, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(SecurityHeadersMiddleware)
	r.Use(RateLimitMiddleware(s.rl, "general", s.rl.config.GeneralRequestsPerMin))

	r.Get("/healthz", s.HandleHealth)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.staticFS))))

	r.Group(func(r chi.Router) {
		r.Use(CSRFMiddleware([]byte(s.config.SessionSecret), s.secureCookies()))
		r.Use(s.SessionMiddleware)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin", http.StatusFound)
		})
		r.Get("/auth/login", s.HandleLogin)
		r.With(RateLimitMiddleware(s.rl, "login", s.rl.config.LoginAttemptsPerMin)).
			Post("/auth/login", s.HandleLoginSubmit)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Post("/auth/logout", s.HandleLogout)
			r.Get("/settings", s.HandleSettings)
			r.Post("/settings", s.HandleSettingsSubmit)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Use(RequireAdmin)
			s.adminRoutes(r)
		})
	})

	return r
}

func (s *Server) adminRoutes(r chi.Router) {
	ah := admin.NewAdminHandler(s.ws, s.prefs, s.templates,
		UserFromContext,
		CSRFTokenFromContext,
		s.logger,
	)

	r.Get("/admin", ah.HandleDashboard)
	r.Post("/admin/realtime", ah.HandleRealtime(screens.ScreenDashboard, "/admin"))
	r.Get("/admin/state/{screen}", ah.HandleState)

	r.Get("/admin/reports", ah.HandleReports)
	r.Post("/admin/reports/bulk", ah.HandleReportsBulk)
	r.Get("/admin/reports/{reportID}", ah.HandleReportDetail)
	r.Post("/admin/reports/{reportID}/status", ah.HandleReportStatus)
	r.Post("/admin/reports/{reportID}/delete", ah.HandleReportDelete)

	r.Get("/admin/matches", ah.HandleMatches)
	r.Post("/admin/matches/trigger", ah.HandleMatchesTrigger)
	r.Post("/admin/matches/clear", ah.HandleMatchesClear)
	r.Post("/admin/matches/realtime", ah.HandleRealtime(screens.ScreenMatches, "/admin/matches"))
	r.Get("/admin/matches/{matchID}", ah.HandleMatchDetail)
	r.Post("/admin/matches/{matchID}/status", ah.HandleMatchStatus)

	r.Get("/admin/users", ah.HandleUsers)
	r.Post("/admin/users", ah.HandleCreateUser)
	r.Post("/admin/users/bulk", ah.HandleUsersBulk)
	r.Get("/admin/users/{userID}", ah.HandleUserDetail)
	r.Post("/admin/users/{userID}/status", ah.HandleUserStatus)
	r.Post("/admin/users/{userID}/role", ah.HandleUserRole)
	r.Post("/admin/users/{userID}/delete", ah.HandleUserDelete)

	r.Get("/admin/fraud", ah.HandleFraud)
	r.Get("/admin/fraud/{fraudID}", ah.HandleFraudDetail)
	r.Post("/admin/fraud/{fraudID}/review", ah.HandleFraudReview)

	r.Get("/admin/audit", ah.HandleAudit)
	r.Get("/admin/audit/{logID}", ah.HandleAuditDetail)
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Stop cleans up server resources.
func (s *Server) Stop() {
	s.rl.Stop()
}

// HandleHealth reports whether the process and its local database are up.
// The REST API is not checked.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Error("health check", "error", err)
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
