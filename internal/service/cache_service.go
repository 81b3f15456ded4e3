package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uniport/uap-leave-api/internal/models"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
)

// CacheRepository abstracts the cache backend.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Cache key builders. Balance and active-policy reads dominate the request
// mix; balances are invalidated per user, policies wholesale.

// BalanceCacheKey keys one user's aggregated balance for a year.
func BalanceCacheKey(userID, year string) string {
	return fmt.Sprintf("balance:%s:%s", userID, year)
}

func balanceCachePattern(userID string) string {
	return fmt.Sprintf("balance:%s:*", userID)
}

// PolicyCacheKey keys the active policy resolution for a triple.
func PolicyCacheKey(requesterType models.RequesterType, department, year string) string {
	return fmt.Sprintf("policy:%s:%s:%s", requesterType, department, year)
}

const policyCachePattern = "policy:*"

// CacheService fronts the cache repository with metrics and a disabled mode.
// A nil *CacheService is valid and behaves as a cache that never hits, so
// handlers need no Redis-present branches.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs CacheService.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		repo:       repo,
		metrics:    metrics,
		defaultTTL: defaultTTL,
		logger:     logger,
		enabled:    enabled,
	}
}

// Enabled reports whether lookups can hit.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads a cached entry into dest, reporting whether it hit. Backend
// failures are returned but callers are expected to fall through to the
// source of truth.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	hit := err == nil
	s.metrics.RecordCacheOperation(hit, time.Since(start))
	switch {
	case hit:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key, using the default TTL when ttl is zero.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate evicts everything matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	err := s.repo.DeleteByPattern(ctx, pattern)
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
	return err
}

// InvalidateUserBalance drops every cached balance view for one user.
func (s *CacheService) InvalidateUserBalance(ctx context.Context, userID string) error {
	return s.Invalidate(ctx, balanceCachePattern(userID))
}

// InvalidatePolicies drops every cached policy resolution.
func (s *CacheService) InvalidatePolicies(ctx context.Context) error {
	return s.Invalidate(ctx, policyCachePattern)
}
