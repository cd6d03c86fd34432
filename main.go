// main.go - Entry point and dependency injection
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/sstent/runlog/internal/config"
	"github.com/sstent/runlog/internal/database"
	"github.com/sstent/runlog/internal/ingest"
	"github.com/sstent/runlog/internal/monitoring"
	"github.com/sstent/runlog/internal/web"
)

var Version = "dev"

type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *database.SQLiteDB
	ingester *ingest.Service
	cron     *cron.Cron
	server   *http.Server
}

func main() {
	root := &cobra.Command{
		Use:          "runlog",
		Short:        "Import and browse running workouts",
		Version:      Version,
		SilenceUsage: true,
	}

	root.AddCommand(NewServeCommand())
	root.AddCommand(NewImportCommand())
	root.AddCommand(NewExportCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp loads configuration and opens the database. Callers must call close.
func newApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if err := monitoring.Init(monitoring.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     Version,
	}, logger); err != nil {
		logger.Warn("error reporting disabled", "error", err)
	}

	db, err := database.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		ingester: ingest.NewService(db, logger, cfg.UploadDir),
	}, nil
}

func (app *App) start() error {
	app.cron = cron.New()
	if _, err := app.ingester.Schedule(app.cron, app.cfg.ImportSchedule, app.cfg.InboxDir); err != nil {
		return fmt.Errorf("invalid IMPORT_SCHEDULE %q: %w", app.cfg.ImportSchedule, err)
	}
	app.cron.Start()

	handler := web.NewWebHandler(app.db, app.ingester, app.logger, app.cfg.MaxUploadMB<<20)
	app.server = &http.Server{
		Addr:              app.cfg.ListenAddr,
		Handler:           web.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		app.logger.Info("Server starting", "addr", app.cfg.ListenAddr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("Server error", "error", err)
		}
	}()

	return nil
}

func (app *App) stop() {
	app.logger.Info("Shutting down...")

	if app.cron != nil {
		<-app.cron.Stop().Done()
	}

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("Server shutdown error", "error", err)
		}
	}

	app.close()
	app.logger.Info("Shutdown complete")
}

func (app *App) close() {
	monitoring.Flush()
	if app.db != nil {
		app.db.Close()
	}
}
