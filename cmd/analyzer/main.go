package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/cache"
	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/config"
	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/database"
	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/telemetry"
	"github.com/Fiore0312/controlli-sub000/internal/service/audit"
)

var (
	configPath  = flag.String("config", "configs/config.yaml", "path to configuration file")
	fromDate    = flag.String("from", "", "first date to analyze (YYYY-MM-DD)")
	toDate      = flag.String("to", "", "last date to analyze (YYYY-MM-DD, defaults to -from)")
	technicians = flag.String("technicians", "", "comma-separated technician UUIDs")
	workers     = flag.Int("workers", 4, "concurrent analysis workers")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "analyzer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	from, to, ids, err := parseFlags()
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	analysisCache, err := cache.NewAnalysisCache(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = analysisCache.Close() }()

	service := audit.NewService(audit.Deps{
		TimelineConfig: cfg.Audit.TimelineConfig(),
		AnomalyConfig:  cfg.Audit.AnomalyConfig(),
		AutoCorrection: cfg.Audit.AutoCorrection,
		BatchWorkers:   *workers,
		Analyses:       database.NewAnalysisRepository(pool),
		Corrections:    database.NewCorrectionRepository(pool),
		Directory:      database.NewTechnicianDirectory(pool),
		Records:        database.NewRecordProvider(pool),
		Cache:          analysisCache,
		Logger:         logger,
	})

	started := time.Now()
	result, err := service.AnalyzeRange(ctx, ids, from, to)
	if err != nil {
		return err
	}

	logger.Info("batch finished",
		zap.Int("analyzed", result.Analyzed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", time.Since(started)))
	for unit, reason := range result.Failures {
		logger.Warn("unit skipped", zap.String("unit", unit), zap.String("reason", reason))
	}
	return nil
}

func parseFlags() (from, to time.Time, ids []uuid.UUID, err error) {
	if *fromDate == "" {
		return from, to, nil, fmt.Errorf("-from is required")
	}
	from, err = time.ParseInLocation("2006-01-02", *fromDate, time.UTC)
	if err != nil {
		return from, to, nil, fmt.Errorf("invalid -from date %q", *fromDate)
	}
	to = from
	if *toDate != "" {
		to, err = time.ParseInLocation("2006-01-02", *toDate, time.UTC)
		if err != nil {
			return from, to, nil, fmt.Errorf("invalid -to date %q", *toDate)
		}
	}

	if *technicians == "" {
		return from, to, nil, fmt.Errorf("-technicians is required")
	}
	for _, raw := range strings.Split(*technicians, ",") {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return from, to, nil, fmt.Errorf("invalid technician id %q", raw)
		}
		ids = append(ids, id)
	}
	return from, to, ids, nil
}
