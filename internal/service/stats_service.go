package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
)

type statsRepository interface {
	AdminStats(ctx context.Context, now time.Time) (*models.AdminStats, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const adminStatsCacheKey = "stats:admin"

// StatsService serves the admin dashboard counters, cached in Redis.
type StatsService struct {
	repo     statsRepository
	cache    statsCache
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewStatsService creates an instance of StatsService.
func NewStatsService(repo statsRepository, cache statsCache, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: repo, cache: cache, metrics: metrics, logger: logger, cacheTTL: cacheTTL}
}

// AdminStats returns the dashboard counters, served from cache while fresh.
func (s *StatsService) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	if s.cache != nil {
		var cached models.AdminStats
		if err := s.cache.Get(ctx, adminStatsCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	stats, err := s.repo.AdminStats(ctx, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute admin stats")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, adminStatsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}

	return stats, nil
}
