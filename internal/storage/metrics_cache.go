package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portfolio-ledger/internal/circuitbreaker"
	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

const metricsKeyPrefix = "metrics"

// DefaultMetricsTTL is used when no TTL is configured.
const DefaultMetricsTTL = 5 * time.Minute

// MetricsCache stores computed performance metrics as JSON under
// metrics:<scope>:<key>. Calls go through a circuit breaker so an
// unreachable Redis fails fast.
type MetricsCache struct {
	redis   *RedisCache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewMetricsCache creates a metrics cache over redis.
func NewMetricsCache(redis *RedisCache, ttl time.Duration) *MetricsCache {
	if ttl <= 0 {
		ttl = DefaultMetricsTTL
	}
	return &MetricsCache{
		redis:   redis,
		ttl:     ttl,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("redis_metrics")),
	}
}

// Breaker exposes the circuit breaker guarding Redis.
func (c *MetricsCache) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// MetricsKey builds the cache key of one series. Only the scope is
// lower-cased; series keys match wallet labels and coins exactly, so "Main"
// and "main" are different entries.
func MetricsKey(scope types.TimelineScope, key string) string {
	return strings.Join([]string{metricsKeyPrefix, strings.ToLower(string(scope)), key}, ":")
}

// GetMetrics returns the cached metrics, or false on a miss.
func (c *MetricsCache) GetMetrics(ctx context.Context, scope types.TimelineScope, key string) (*models.PerformanceMetrics, bool, error) {
	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.redis.Get(ctx, MetricsKey(scope, key))
		if errors.Is(err, redis.Nil) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, apperrors.NewCacheError("get metrics", err)
	}
	if data == nil {
		return nil, false, nil
	}

	var m models.PerformanceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, apperrors.NewCacheError("decode metrics", err)
	}
	return &m, true, nil
}

// SetMetrics stores metrics with the cache TTL.
func (c *MetricsCache) SetMetrics(ctx context.Context, scope types.TimelineScope, key string, metrics *models.PerformanceMetrics) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return apperrors.NewCacheError("encode metrics", err)
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.redis.Set(ctx, MetricsKey(scope, key), data, c.ttl)
	})
	if err != nil {
		return apperrors.NewCacheError("set metrics", err)
	}
	return nil
}

// InvalidateMetrics drops every cached series.
func (c *MetricsCache) InvalidateMetrics(ctx context.Context) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.redis.DeletePattern(ctx, metricsKeyPrefix+":*")
		return err
	})
	if err != nil {
		return apperrors.NewCacheError("invalidate metrics", err)
	}
	return nil
}
