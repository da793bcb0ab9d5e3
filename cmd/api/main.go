package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/commercebi/config"
	"github.com/jordanlanch/commercebi/pkg/api/handlers"
	"github.com/jordanlanch/commercebi/pkg/cache"
	"github.com/jordanlanch/commercebi/pkg/database"
	"github.com/jordanlanch/commercebi/pkg/ingest"
	"github.com/jordanlanch/commercebi/pkg/jobs"
	"github.com/jordanlanch/commercebi/pkg/kpi"
	"github.com/jordanlanch/commercebi/pkg/logger"
	"github.com/jordanlanch/commercebi/pkg/metrics"
	custommiddleware "github.com/jordanlanch/commercebi/pkg/middleware"
	"github.com/jordanlanch/commercebi/pkg/pipeline"
	"github.com/jordanlanch/commercebi/pkg/storage"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	log.Info("configuration loaded", "environment", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.APIEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			log.Info("sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	kpiParams, err := kpi.ParseParams(cfg.KPICACCutoff, cfg.KPIGrowthYear)
	if err != nil {
		log.Error("invalid kpi configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, database.DefaultPoolConfig(),
		&database.SSLConfig{Mode: cfg.DBSSLMode}, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// The cache is optional; KPIs are computed on every request without it
	var kpiCache kpi.JSONCache
	var cacheInvalidator pipeline.CacheInvalidator
	var cachePinger handlers.Pinger
	redisClient, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, kpi cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		kpiCache, cacheInvalidator, cachePinger = redisClient, redisClient, redisClient
	}

	sink, err := storage.New(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize publishing sink", "error", err)
		os.Exit(1)
	}

	prometheusMetrics := metrics.New()
	go reportDBConnections(ctx, db, prometheusMetrics)

	kpiService := kpi.NewService(db, kpiCache, cfg.KPICacheTTL, prometheusMetrics, log)
	pipelineService := pipeline.NewService(pipeline.Config{
		RawDir:     cfg.DataRawDir,
		CleanedDir: cfg.DataCleanedDir,
		Clean:      ingest.Options{RecomputeSegments: cfg.RecomputeSegments},
		KPIParams:  kpiParams,
	}, db, sink, kpiService, cacheInvalidator, prometheusMetrics, log)
	monitor := jobs.NewDataMonitor(db, log)

	schedule := jobs.DefaultSchedule(cfg.PipelineSchedule)
	var cronManager *jobs.CronManager
	if cfg.FeatureScheduler {
		cronManager = jobs.NewCronManager(pipelineService, monitor, log)
		if err := cronManager.SetupJobs(schedule); err != nil {
			log.Error("failed to set up cron jobs", "error", err)
			os.Exit(1)
		}
		cronManager.Start()
	}

	e := echo.New()
	e.HideBanner = true

	rateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	rateLimiter.StartCleanup(ctx, 3*time.Minute)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String()}
			if v.Error != nil {
				log.Error("request failed", append(args, "error", v.Error)...)
				return nil
			}
			log.Info("request", args...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Repanic after capturing to let the Recover middleware handle it
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(middleware.Gzip())
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(rateLimiter.RateLimitMiddleware())

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "CommerceBI API",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	healthHandler := handlers.NewHealthHandler(db, cachePinger)
	e.GET("/health", healthHandler.Health)

	handlers.Register(e.Group("/api/v1"), handlers.Handlers{
		Health:   healthHandler,
		KPI:      handlers.NewKPIHandler(kpiService, kpiParams),
		Sales:    handlers.NewSalesHandler(db, prometheusMetrics),
		Pipeline: handlers.NewPipelineHandler(pipelineService, db, monitor, schedule.MaxAge),
	})

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Info("commercebi api starting",
		"address", address,
		"db_driver", cfg.DBDriver,
		"storage", cfg.StorageType,
		"scheduler", cfg.FeatureScheduler,
		"rate_limit_per_minute", cfg.RateLimitRequestsPerMinute)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	if cronManager != nil {
		<-cronManager.Stop().Done()
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return
	}
	log.Info("server gracefully stopped")
}

func reportDBConnections(ctx context.Context, db *database.Client, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UpdateDBConnections(float64(db.Stats().OpenConnections))
		}
	}
}
