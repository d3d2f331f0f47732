package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Fiore0312/controlli-sub000/internal/api/rest"
	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/cache"
	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/config"
	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/database"
	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/telemetry"
	"github.com/Fiore0312/controlli-sub000/internal/metrics"
	"github.com/Fiore0312/controlli-sub000/internal/service/audit"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceVersion = cfg.Version
	telCfg.Environment = cfg.Environment
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telCfg.SamplingRate = cfg.Telemetry.SamplingRate

	provider, err := telemetry.Initialize(ctx, telCfg)
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	analysisCache, err := cache.NewAnalysisCache(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer func() { _ = analysisCache.Close() }()

	registry, err := metrics.NewRegistry("timesheet-audit")
	if err != nil {
		logger.Fatal("failed to build metrics registry", zap.Error(err))
	}

	promRegistry := prometheus.NewRegistry()
	auditMetrics := metrics.New(promRegistry)

	corrections := database.NewCorrectionRepository(pool)

	scheduler := audit.NewReminderScheduler(corrections, audit.NewLogNotifier(logger), 15*time.Minute, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	service := audit.NewService(audit.Deps{
		TimelineConfig: cfg.Audit.TimelineConfig(),
		AnomalyConfig:  cfg.Audit.AnomalyConfig(),
		AutoCorrection: cfg.Audit.AutoCorrection,
		Analyses:       database.NewAnalysisRepository(pool),
		Corrections:    corrections,
		Directory:      database.NewTechnicianDirectory(pool),
		Records:        database.NewRecordProvider(pool),
		Cache:          analysisCache,
		Logger:         logger,
		Tracer:         telemetry.Tracer("audit.service"),
		Metrics:        auditMetrics,
	})

	server := rest.NewServer(cfg.Server, rest.ServerDeps{
		Handler:    rest.NewHandler(service, logger),
		Logger:     logger,
		Registry:   registry,
		Prometheus: promRegistry,
		Checkers: map[string]rest.HealthChecker{
			"database": pool.Ping,
			"redis":    analysisCache.Ping,
		},
	})

	if err := server.Start(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
