package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightcart-lab/recsys/internal/activity"
	corecfg "github.com/brightcart-lab/recsys/internal/core/config"
	"github.com/brightcart-lab/recsys/internal/core/scoring"
	"github.com/brightcart-lab/recsys/internal/core/storage/postgres"
	"github.com/brightcart-lab/recsys/internal/metrics"
	"github.com/brightcart-lab/recsys/internal/migrations"
	"github.com/brightcart-lab/recsys/internal/recommend"
	"github.com/brightcart-lab/recsys/internal/recompute"
	"github.com/brightcart-lab/recsys/internal/server"
)

func main() {
	configPath := flag.String("config", "recsys.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	cronInterval, err := time.ParseDuration(cfg.Recompute.EffectiveCronInterval())
	if err != nil {
		slog.Error("Invalid recompute interval", "value", cfg.Recompute.EffectiveCronInterval(), "error", err)
		os.Exit(1)
	}

	// 2. Run Database Migrations (separate handle: the adapter refuses
	// to start against an unmigrated schema)
	if err := runMigrations(cfg); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 4. Initialize Scoring and the Recommendation Components
	sink := metrics.SlogSink{}
	calc := scoring.NewCalculator(cfg.Scoring.Weights)

	popularity := recommend.NewPopularityIndex(dbAdapter)
	trending := recommend.NewTrendingDetector(dbAdapter, dbAdapter)
	personalization := recommend.NewPersonalizationEngine(dbAdapter, dbAdapter, dbAdapter, calc, popularity)
	similarity := recommend.NewSimilarityMatcher(dbAdapter)
	aggregator := recommend.NewAggregator(popularity, trending, personalization, similarity, cfg.Layout, sink)

	// 5. Initialize Recompute (cron-based popularity refresh)
	recomputeJob := recompute.NewJob(dbAdapter, calc, sink, recompute.JobParameter{
		BatchSize:   cfg.Recompute.BatchSize,
		WorkerCount: cfg.Recompute.WorkerCount,
	})
	scheduler := recompute.NewScheduler(cronInterval, recomputeJob)

	slog.Info("Recompute scheduler initialized",
		"interval", cronInterval,
		"enabled", cfg.Recompute.Enabled,
		"batch_size", cfg.Recompute.BatchSize,
		"worker_count", cfg.Recompute.WorkerCount,
	)

	// 6. Initialize Activity Intake (write path)
	activitySvc := activity.NewService(dbAdapter, dbAdapter, cfg.Server.MaxBodySizeMB)

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	recommend.NewHandler(aggregator).RegisterRoutes(srv.Engine)
	activitySvc.RegisterRoutes(srv.Engine)
	recompute.NewHandler(recomputeJob).RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Recompute.Enabled {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Recompute scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func runMigrations(cfg *corecfg.Config) error {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()
	return migrations.RunMigrations(db, cfg.Database.AutoMigrate)
}
