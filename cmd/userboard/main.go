package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/userboard/internal/app"
	"github.com/noah-isme/userboard/internal/dashboard"
	"github.com/noah-isme/userboard/internal/directory"
	"github.com/noah-isme/userboard/internal/observability"
	"github.com/noah-isme/userboard/internal/platform/cache"
	"github.com/noah-isme/userboard/internal/shared"
	"github.com/noah-isme/userboard/internal/view"
	"github.com/noah-isme/userboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "userboard_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	directoryClient := directory.NewClient(cfg.DirectoryBaseURL, cfg.DirectoryTimeout)
	directoryCache := directory.NewCache(redisClient, cfg.DirectoryCacheTTL)
	directoryService := directory.NewService(directoryClient, directoryCache, metrics, logger)

	registry := dashboard.NewRegistry(dashboard.RegistryConfig{
		Lister:        directoryService,
		PerPage:       cfg.UsersPerPage,
		IdleTTL:       cfg.DashboardIdleTTL,
		MaxDashboards: cfg.DashboardMax,
		Logger:        logger,
		Metrics:       metrics,
	})
	registryDone := make(chan struct{})
	go func() {
		defer close(registryDone)
		registry.Run(ctx)
	}()
	dashboardHandler := dashboard.NewHandler(logger, registry, templates, csrfManager, cfg.DashboardRenderWait)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	if cfg.WarmPages > 0 {
		if _, err := jobClient.EnqueueDirectoryWarm(ctx, cfg.WarmPages, cfg.UsersPerPage); err != nil {
			logger.Warn("enqueue directory warm", slog.Any("error", err))
		}
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
		Readiness: []app.ReadinessCheck{
			{Name: "redis", Check: cache.Ping(redisClient)},
			{Name: "directory", Check: directoryClient.Ping},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	<-registryDone
}
