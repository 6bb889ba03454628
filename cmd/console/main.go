package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	console "github.com/lostfound/admin-console"
	"github.com/lostfound/admin-console/internal/api"
	"github.com/lostfound/admin-console/internal/config"
	"github.com/lostfound/admin-console/internal/notify"
	"github.com/lostfound/admin-console/internal/prefs"
	"github.com/lostfound/admin-console/internal/screens"
	"github.com/lostfound/admin-console/internal/server"
	"github.com/lostfound/admin-console/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("CONSOLE_CONFIG"), "YAML config file")
	var o config.Overrides
	flag.StringVar(&o.ListenAddr, "listen", "", "HTTP listen address")
	flag.StringVar(&o.APIBaseURL, "api", "", "Lost & Found REST API base URL")
	flag.StringVar(&o.DBPath, "db", "", "SQLite database path")
	flag.StringVar(&o.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.Apply(o)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	if cfg.InsecureSecret() {
		logger.Warn("using insecure default session secret; set CONSOLE_SESSION_SECRET for production")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewSQLiteStore(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	p := prefs.New(db, logger)
	if err := p.Hydrate(ctx); err != nil {
		return err
	}

	client, err := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Tokens:  api.StoreTokenSource(p),
	})
	if err != nil {
		return err
	}

	notifier := notify.New(notify.Config{
		APIKey:      cfg.Notify.SendGridKey,
		FromAddress: cfg.Notify.FromAddress,
		FromName:    cfg.Notify.FromName,
		To:          cfg.Notify.To,
		SandboxMode: cfg.Notify.Sandbox,
	}, logger)
	if !notifier.Enabled() {
		logger.Info("bulk failure digests disabled; set CONSOLE_SENDGRID_KEY and CONSOLE_NOTIFY_TO to enable")
	}

	ws := screens.NewWorkspace(client, screens.Options{
		PageSize:         cfg.API.PageSize,
		BulkConcurrency:  cfg.API.BulkConcurrency,
		RealtimeInterval: cfg.Realtime.Interval,
		Journal:          db,
		Notifier:         notifier,
		Logger:           logger,
	})
	defer ws.Shutdown()

	srv, err := server.NewServer(server.Config{
		ListenAddr:         cfg.Server.ListenAddr,
		BaseURL:            cfg.Server.BaseURL,
		SessionSecret:      cfg.Server.SessionSecret,
		LoginRatePerMinute: cfg.Server.LoginRatePerMinute,
	}, server.Deps{
		API:       client,
		Prefs:     p,
		Workspace: ws,
		Health:    db,
		Logger:    logger,
	}, console.Templates(), console.Static())
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer srv.Stop()

	httpSrv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: srv.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.ListenAddr, "api", cfg.API.BaseURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(c config.LoggingConfig) *slog.Logger {
	level, _ := config.ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
