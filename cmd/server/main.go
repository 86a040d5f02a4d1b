package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hercules-motores/service-analytics/internal/app"
	"github.com/hercules-motores/service-analytics/internal/config"
	"github.com/hercules-motores/service-analytics/internal/importer"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	// Serve right away; the first load runs in the background and the view
	// stays empty until it commits.
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, cfg.ReconcileTimeout)
		defer cancel()
		if err := deps.Importer.Load(loadCtx); err != nil && !errors.Is(err, importer.ErrImportInFlight) {
			logger.Warn("initial_load_failed", "error", err)
		}
	}()

	if cfg.ReconcileSchedule != "" {
		scheduler, err := importer.NewScheduler(deps.Importer, cfg.ReconcileSchedule, cfg.Location, cfg.ReconcileTimeout, logger)
		if err != nil {
			logger.Error("build scheduler", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("reconcile_scheduled", "schedule", cfg.ReconcileSchedule, "location", cfg.Location.String())
	}

	router, err := app.NewRouter(cfg, deps.Importer, deps.Schema, deps.Audit, logger)
	if err != nil {
		logger.Error("build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		logger.Info("api_started", "addr", cfg.Addr, "store", cfg.StoreDriver, "scope", cfg.ImportScope)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
