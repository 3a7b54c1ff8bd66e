package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/adapters/event"
	"github.com/khoahotran/stories-backend/adapters/media_storage"
	"github.com/khoahotran/stories-backend/adapters/persistence"
	cleanupUC "github.com/khoahotran/stories-backend/internal/application/usecase/cleanup"
	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/internal/domain/deletion"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/khoahotran/stories-backend/pkg/metrics"
	"github.com/khoahotran/stories-backend/pkg/tracing"
)

func main() {
	fmt.Println("Starting Stories Cleanup Worker...")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewZapLogger(cfg.App.Env, logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
	})

	if !cfg.Cleanup.Enabled {
		appLogger.Info("Story cleanup disabled, worker exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewTracerProvider(cfg, appLogger, "stories-cleanup-worker")
	if err != nil {
		appLogger.Fatal("Failed to initialize tracer provider", err)
	}
	defer tracing.Shutdown(context.Background(), tp, appLogger)

	dbPool, err := persistence.NewPostgresPool(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Cannot connect Postgres", err)
	}
	defer dbPool.Close()

	mediaStore, err := media_storage.NewCloudinaryAdapter(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize media store", err)
	}

	kafkaClient, err := event.NewKafkaProducerClient(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Cannot init Kafka", err)
	}
	defer kafkaClient.Close()

	cleanupMetrics := metrics.NewCleanup()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		cleanupMetrics,
	)

	clk := clock.WallClock
	reclaim := cleanupUC.NewReclaimUseCase(
		persistence.NewPostgresStoryRepo(dbPool, appLogger),
		persistence.NewPostgresStoryViewRepo(dbPool, appLogger),
		persistence.NewPostgresFailedDeletionRepo(dbPool, appLogger),
		mediaStore,
		kafkaClient,
		clk,
		cleanupMetrics,
		appLogger,
		cleanupUC.Policy{
			Strict: cfg.Cleanup.Strict,
			Retry: deletion.RetryPolicy{
				MaxAttempts: cfg.Cleanup.MaxAttempts,
				Base:        cfg.Cleanup.RetryBase(),
				Max:         cfg.Cleanup.RetryMax(),
			},
			RetryBatch: cfg.Cleanup.RetryBatch,
		},
	)

	scheduler, err := cleanupUC.NewScheduler(
		reclaim,
		cleanupUC.NewRunGuard(),
		cleanupUC.SchedulerConfig{Schedule: cfg.Cleanup.Schedule, Timezone: cfg.Cleanup.Timezone},
		clk,
		cleanupMetrics,
		appLogger,
	)
	if err != nil {
		appLogger.Fatal("Failed to create cleanup scheduler", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start cleanup scheduler", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Worker metrics listening", zap.String("port", cfg.Worker.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics server stopped", err)
		}
	}()

	appLogger.Info("Story cleanup worker started",
		zap.String("schedule", cfg.Cleanup.Schedule),
		zap.String("timezone", cfg.Cleanup.Timezone),
		zap.Bool("strict", cfg.Cleanup.Strict),
	)

	<-ctx.Done()
	appLogger.Info("Shutting down worker...")

	if err := scheduler.Shutdown(); err != nil {
		appLogger.Error("Cleanup scheduler shutdown failed", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Metrics server forced to shutdown", err)
	}
}
