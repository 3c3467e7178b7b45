package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/internal/service"
)

func TestAnalyticsHandlerOverviewCarriesMeta(t *testing.T) {
	r := newTestRouter(Routes{})

	rec, env := doRequest(t, r, http.MethodGet, "/api/analytics/overview?startDate=2024-01-01", adminToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var overview models.AnalyticsOverview
	decodeData(t, env, &overview)
	assert.Equal(t, 10, overview.TotalLeads)
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestAnalyticsHandlerRejectsBadRange(t *testing.T) {
	r := newTestRouter(Routes{})

	rec, env := doRequest(t, r, http.MethodGet, "/api/analytics/trends?startDate=bad", adminToken, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid startDate", env.Error.Message)
}

func TestAnalyticsHandlerAdminOnly(t *testing.T) {
	r := newTestRouter(Routes{})

	for _, path := range []string{"overview", "trends", "agent-performance", "recent-activities", "lead-funnel"} {
		rec, _ := doRequest(t, r, http.MethodGet, "/api/analytics/"+path, agentToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestAnalyticsHandlerRecentActivitiesLimit(t *testing.T) {
	analytics := &fakeAnalyticsService{}
	r := newTestRouter(Routes{Analytics: NewAnalyticsHandler(analytics)})

	rec, _ := doRequest(t, r, http.MethodGet, "/api/analytics/recent-activities?limit=25", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, analytics.limit)

	rec, _ = doRequest(t, r, http.MethodGet, "/api/analytics/recent-activities?limit=abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func TestMetricsHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	h := NewMetricsHandler(metrics, failingPinger{})
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines_total")

	ready := NewMetricsHandler(nil, nil)
	r = gin.New()
	r.GET("/ready", ready.Ready)
	r.GET("/metrics", ready.Prometheus)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
