package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/voyagedesk/activity-api/api/swagger"
	"github.com/voyagedesk/activity-api/internal/handler"
	"github.com/voyagedesk/activity-api/internal/middleware"
	"github.com/voyagedesk/activity-api/internal/models"
	"github.com/voyagedesk/activity-api/internal/repository"
	"github.com/voyagedesk/activity-api/internal/service"
	"github.com/voyagedesk/activity-api/pkg/cache"
	"github.com/voyagedesk/activity-api/pkg/config"
	"github.com/voyagedesk/activity-api/pkg/database"
	"github.com/voyagedesk/activity-api/pkg/jobs"
	"github.com/voyagedesk/activity-api/pkg/logger"
	corsmiddleware "github.com/voyagedesk/activity-api/pkg/middleware/cors"
	reqidmiddleware "github.com/voyagedesk/activity-api/pkg/middleware/requestid"
	"github.com/voyagedesk/activity-api/pkg/storage"
)

// @title VoyageDesk Activity API
// @version 1.0.0
// @description Staff activity tracking and productivity metrics
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	location, err := time.LoadLocation(cfg.Tracking.Timezone)
	if err != nil {
		logr.Sugar().Warnw("invalid timezone, falling back to UTC", "timezone", cfg.Tracking.Timezone)
		location = time.UTC
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.MetricsTTL, logr, true)
	}

	sessionRepo := repository.NewSessionRepository(db)
	eventRepo := repository.NewEventRepository(db)

	tracker := service.NewTrackerService(sessionRepo, eventRepo, metricsSvc, logr)
	aggregator := service.NewAggregatorService(eventRepo, cacheSvc, metricsSvc, service.AggregatorConfig{
		FocusGapThreshold: cfg.Tracking.FocusGapThreshold,
		Location:          location,
		CacheTTL:          cfg.Cache.MetricsTTL,
	}, logr)
	trends := service.NewTrendService(aggregator, eventRepo, cacheSvc, service.TrendConfig{
		Location:       location,
		RecentActivity: cfg.Tracking.RecentActivity,
		CacheTTL:       cfg.Cache.TrendTTL,
	}, logr)

	refresher := service.NewRefresher(aggregator, cfg.Tracking.RefreshInterval, 24*time.Hour,
		func(subjectID string, _ *models.ProductivityMetrics) {
			logr.Debug("refreshed metrics", zap.String("subject_id", subjectID))
		}, logr)
	tracker.SetWatcher(refresher)

	exportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exports := service.NewExportService(eventRepo, trends, exportStorage, signer, metricsSvc,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
		jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
		}, logr)

	retention := service.NewRetentionService(eventRepo, exportStorage, service.RetentionConfig{
		EventRetention: cfg.Tracking.Retention,
		SweepInterval:  cfg.Tracking.SweepInterval,
		ExportTTL:      cfg.Reports.SignedURLTTL,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refresher.Run(ctx)
	// Sessions left open across a restart resume their refresh schedule.
	if subjects, err := tracker.CurrentSubjects(ctx); err == nil {
		for _, subjectID := range subjects {
			refresher.Watch(subjectID)
		}
	}
	exports.Start(ctx)
	defer exports.Stop()
	retention.Start(ctx)
	defer retention.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	trackingHandler := handler.NewTrackingHandler(tracker)
	reportHandler := handler.NewReportHandler(aggregator, trends, eventRepo)
	exportHandler := handler.NewExportHandler(exports, exportStorage)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		tracking := api.Group("/tracking")
		tracking.GET("", trackingHandler.Subjects)
		tracking.GET("/:subjectId", trackingHandler.Status)
		tracking.POST("/:subjectId/start", trackingHandler.Start)
		tracking.POST("/:subjectId/stop", trackingHandler.Stop)
		tracking.POST("/:subjectId/events", trackingHandler.Record)

		reports := api.Group("/reports")
		reports.GET("/:subjectId/productivity", reportHandler.Productivity)
		reports.GET("/:subjectId/activities", reportHandler.Activities)
		reports.GET("/:subjectId/trend", reportHandler.Trend)
		reports.GET("/:subjectId/report", reportHandler.Report)
		reports.POST("/:subjectId/export", exportHandler.Create)
		reports.GET("/:subjectId/export/raw", exportHandler.Raw)
		reports.GET("/:subjectId/export/jobs/:jobId", exportHandler.Job)

		api.GET("/export/:token", exportHandler.Download)
		api.GET("/status", metricsHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Warnw("server shutdown", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
