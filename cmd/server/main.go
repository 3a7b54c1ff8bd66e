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

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/adapters/event"
	httpAdapter "github.com/khoahotran/stories-backend/adapters/http"
	"github.com/khoahotran/stories-backend/adapters/media_storage"
	"github.com/khoahotran/stories-backend/adapters/persistence"
	"github.com/khoahotran/stories-backend/adapters/realtime"
	cleanupUC "github.com/khoahotran/stories-backend/internal/application/usecase/cleanup"
	notifyUC "github.com/khoahotran/stories-backend/internal/application/usecase/notify"
	storyUC "github.com/khoahotran/stories-backend/internal/application/usecase/story"
	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/internal/domain/deletion"
	"github.com/khoahotran/stories-backend/pkg/auth"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/khoahotran/stories-backend/pkg/metrics"
	"github.com/khoahotran/stories-backend/pkg/tracing"
)

func main() {
	fmt.Println("Start Stories API Server...")

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
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewTracerProvider(cfg, appLogger, "stories-api")
	if err != nil {
		appLogger.Fatal("Failed to initialize tracer provider", err)
	}
	defer tracing.Shutdown(context.Background(), tp, appLogger)

	dbPool, err := persistence.NewPostgresPool(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Cannot connect Postgres", err)
	}
	defer dbPool.Close()

	redisClient, err := persistence.NewRedisClient(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Cannot connect Redis", err)
	}
	defer redisClient.Close()

	kafkaClient, err := event.NewKafkaProducerClient(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Cannot init Kafka", err)
	}
	defer kafkaClient.Close()

	mediaStore, err := media_storage.NewCloudinaryAdapter(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize media store", err)
	}

	// Repositories
	storyRepo := persistence.NewPostgresStoryRepo(dbPool, appLogger)
	viewRepo := persistence.NewPostgresStoryViewRepo(dbPool, appLogger)
	ledger := persistence.NewPostgresFailedDeletionRepo(dbPool, appLogger)
	userRepo := persistence.NewCachedUserRepo(persistence.NewPostgresUserRepo(dbPool), redisClient, cfg.Redis.UserTTL, appLogger)

	// Services
	clk := clock.WallClock
	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifespan)
	hub := realtime.NewHub(appLogger)
	retryPolicy := deletion.RetryPolicy{
		MaxAttempts: cfg.Cleanup.MaxAttempts,
		Base:        cfg.Cleanup.RetryBase(),
		Max:         cfg.Cleanup.RetryMax(),
	}

	// Use Cases
	createStoryUseCase := storyUC.NewCreateStoryUseCase(storyRepo, mediaStore, kafkaClient, clk, appLogger)
	getTrayUseCase := storyUC.NewGetTrayUseCase(storyRepo, viewRepo, userRepo, clk, appLogger)
	getStoryUseCase := storyUC.NewGetStoryUseCase(storyRepo, userRepo, appLogger)
	recordViewUseCase := storyUC.NewRecordViewUseCase(storyRepo, viewRepo, kafkaClient, clk, appLogger)
	listViewersUseCase := storyUC.NewListViewersUseCase(storyRepo, viewRepo, userRepo)
	listDeletionsUseCase := cleanupUC.NewListDeletionsUseCase(ledger, retryPolicy)
	deliverUseCase := notifyUC.NewDeliverStoryEventUseCase(hub, appLogger)

	// Metrics
	httpMetrics := metrics.NewHTTP()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpMetrics,
	)

	router := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		Logger: appLogger,
		JWT:    jwtSvc,
		Stories: httpAdapter.NewStoryHandler(
			createStoryUseCase,
			getTrayUseCase,
			getStoryUseCase,
			recordViewUseCase,
			listViewersUseCase,
			appLogger,
		),
		Deletions:      httpAdapter.NewDeletionHandler(listDeletionsUseCase),
		OperatorIDs:    cfg.Admin.OperatorIDs,
		Live:           httpAdapter.NewWSHandler(hub, cfg.HTTP.AllowedOrigins, appLogger),
		Metrics:        httpMetrics,
		Gatherer:       registry,
		RateLimiter:    httpAdapter.NewRateLimiter(cfg.HTTP.RateLimitPerMinute),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	// Every server instance needs every event for its own sockets.
	consumer := event.NewStoryEventConsumer(cfg, notifierGroupID(), deliverUseCase.Execute, appLogger)
	defer consumer.Close()
	go consumer.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Server running", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Cannot run server", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", err)
	}
}

func notifierGroupID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "story-notifier-" + host
}
