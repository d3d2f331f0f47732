package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	domainerrors "github.com/Fiore0312/controlli-sub000/internal/domain/errors"
	"github.com/Fiore0312/controlli-sub000/internal/infrastructure/config"
)

// AnalysisCache is a Redis-backed read-through cache over persisted daily
// analyses, keyed by (technician, date).
type AnalysisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewAnalysisCache connects to Redis and verifies the connection.
func NewAnalysisCache(cfg config.RedisConfig, logger *zap.Logger) (*AnalysisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	logger.Info("analysis cache initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Duration("ttl", ttl))

	return &AnalysisCache{client: client, ttl: ttl, logger: logger}, nil
}

func (c *AnalysisCache) Get(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
	payload, err := c.client.Get(ctx, c.key(technicianID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domainerrors.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var a analysis.DailyAnalysis
	if err := json.Unmarshal(payload, &a); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.logger.Warn("dropping unreadable cache entry",
			zap.String("technician_id", technicianID.String()),
			zap.Error(err))
		c.client.Del(ctx, c.key(technicianID, date))
		return nil, domainerrors.ErrAnalysisNotFound
	}
	return &a, nil
}

func (c *AnalysisCache) Set(ctx context.Context, a *analysis.DailyAnalysis) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling analysis for cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key(a.TechnicianID, a.Date), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *AnalysisCache) Invalidate(ctx context.Context, technicianID uuid.UUID, date time.Time) error {
	if err := c.client.Del(ctx, c.key(technicianID, date)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity, for readiness probes.
func (c *AnalysisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (c *AnalysisCache) Close() error {
	return c.client.Close()
}

func (c *AnalysisCache) key(technicianID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("audit:analysis:%s:%s", technicianID, date.Format("2006-01-02"))
}
