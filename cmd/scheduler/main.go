// Command scheduler is a long-running process that runs the maintenance
// sweeps (subscription expiry and streak decay) on their cron schedules.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/config"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/jobs"
	"mom-support-backend/pkg/streak"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	db, err := database.NewDatabase(database.DatabaseConfig{
		UseLocalDB:   cfg.UseLocalDB,
		LocalDataDir: cfg.LocalDataDir,
		PostgresDSN:  cfg.PostgresDSN,
		SupabaseURL:  cfg.SupabaseURL,
		SupabaseKey:  cfg.SupabaseKey,
		Debug:        cfg.Debug,
	})
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.HealthCheck(context.Background()); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established", "kind", db.Kind())

	// Sweeps act on every user, so no request identity is involved.
	noIdentity := auth.SourceFunc(func(context.Context) (auth.Identity, error) {
		return auth.Identity{}, auth.ErrNotAuthenticated
	})
	entitlements := entitlement.NewService(db, noIdentity, logger)
	tracker := streak.NewTracker(db, noIdentity, logger, streak.WithLocation(cfg.Location()))

	scheduler := jobs.NewScheduler(jobs.NewJobs(entitlements, tracker, logger), logger, cfg)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler started", "jobs", scheduler.Entries(), "timezone", cfg.Location().String())

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	<-scheduler.Stop().Done()
	logger.Info("scheduler stopped gracefully")
}
