package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenCacheRepo struct{}

func (brokenCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func (brokenCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenCacheRepo) DeleteByPattern(context.Context, string) error {
	return errors.New("connection refused")
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	repo := &stubCacheRepo{}
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, 0, zap.NewNop(), true)

	var out map[string]int
	assert.False(t, cache.Get(context.Background(), "analytics:overview", &out))

	cache.Set(context.Background(), "analytics:overview", map[string]int{"totalLeads": 4}, 0)
	require.True(t, cache.Get(context.Background(), "analytics:overview", &out))
	assert.Equal(t, 4, out["totalLeads"])

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))
}

func TestCacheServiceInvalidateAnalyticsOnly(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	cache.Set(context.Background(), "analytics:trends", 1, 0)
	cache.Set(context.Background(), "session:abc", 1, 0)

	cache.InvalidateAnalytics(context.Background())

	assert.NotContains(t, repo.store, "analytics:trends")
	assert.Contains(t, repo.store, "session:abc")
}

func TestCacheServiceDisabledAndFailuresAreMisses(t *testing.T) {
	disabled := NewCacheService(&stubCacheRepo{}, nil, 0, nil, false)
	assert.False(t, disabled.Enabled())
	disabled.Set(context.Background(), "k", 1, 0)
	var v int
	assert.False(t, disabled.Get(context.Background(), "k", &v))

	var nilCache *CacheService
	assert.False(t, nilCache.Get(context.Background(), "k", &v))
	assert.NotPanics(t, func() { nilCache.InvalidateAnalytics(context.Background()) })

	broken := NewCacheService(brokenCacheRepo{}, nil, 0, nil, true)
	assert.False(t, broken.Get(context.Background(), "k", &v))
	assert.NotPanics(t, func() {
		broken.Set(context.Background(), "k", 1, 0)
		broken.InvalidateAnalytics(context.Background())
	})
}
