package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-enrollment-engine/api/swagger"
	"github.com/noah-isme/sma-enrollment-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-enrollment-engine/internal/middleware"
	"github.com/noah-isme/sma-enrollment-engine/internal/repository"
	"github.com/noah-isme/sma-enrollment-engine/internal/service"
	"github.com/noah-isme/sma-enrollment-engine/pkg/cache"
	"github.com/noah-isme/sma-enrollment-engine/pkg/config"
	"github.com/noah-isme/sma-enrollment-engine/pkg/database"
	"github.com/noah-isme/sma-enrollment-engine/pkg/jobs"
	"github.com/noah-isme/sma-enrollment-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-enrollment-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-enrollment-engine/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title Enrollment Engine API
// @version 1.0.0
// @description Course enrollment lifecycle, seat ledger, class assignment and session scheduling.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr.Named("cache"))
	defer cacheRepo.Close() //nolint:errcheck

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	classRepo := repository.NewClassRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	metrics := service.NewMetricsService()
	var cacheStore service.CacheStore
	if redisClient != nil {
		cacheStore = cacheRepo
	}
	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.Assignment.SuggestionCacheTTL, logr.Named("cache"))

	queue := jobs.NewMutationQueue("enrollments", jobs.QueueConfig{
		BufferSize: cfg.Mutations.BufferSize,
		Logger:     logr.Named("queue"),
		Observer:   metrics,
	})
	queue.Start()

	validate := service.NewValidator()
	ranker := service.NewRuleBasedRanker(classRepo, service.WeightedScorer{
		HeadroomWeight:  cfg.Assignment.HeadroomWeight,
		LoadWeight:      cfg.Assignment.LoadWeight,
		ProximityWeight: cfg.Assignment.ProximityWeight,
	}, logr.Named("ranker"))

	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentDeps{
		Enrollments: enrollmentRepo,
		Classes:     classRepo,
		Seats:       service.NewSeatLedger(classRepo, cacheSvc, metrics, logr.Named("seats")),
		Runner:      queue,
		Ranker:      ranker,
		Notifier:    service.NewNotificationService(notificationRepo, cacheRepo, cfg.Notifications.Enabled, logr.Named("notifications")),
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr.Named("enrollments"),
	}, service.EnrollmentConfig{
		ConfidenceThreshold: cfg.Assignment.ConfidenceThreshold,
		MutationTimeout:     cfg.Mutations.Timeout,
	})
	scheduleSvc := service.NewScheduleService(scheduleRepo, service.NewConflictChecker(scheduleRepo), metrics, validate, logr.Named("schedule"))
	rosterSvc := service.NewRosterService(classRepo, enrollmentRepo, logr.Named("roster"))

	checks := map[string]handler.HealthCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, metrics, checks, handler.Handlers{
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Schedules:   handler.NewScheduleHandler(scheduleSvc),
		Classes:     handler.NewClassHandler(rosterSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			queue.Stop()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	// In-flight handlers have returned; drain whatever they left queued.
	queue.Stop()
	logr.Info("server stopped")
	return nil
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, checks map[string]handler.HealthCheck, handlers handler.Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health"))

	ops := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers)
	return r
}
