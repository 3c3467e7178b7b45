package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-crm/internal/middleware"
	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/internal/service"
	"github.com/noah-isme/admissions-crm/pkg/response"
)

type analyticsService interface {
	ParseRange(startRaw, endRaw string) (models.DateRange, error)
	Overview(ctx context.Context, rng models.DateRange) (*models.AnalyticsOverview, error)
	Trends(ctx context.Context, rng models.DateRange) (*models.AnalyticsTrends, error)
	AgentPerformance(ctx context.Context, rng models.DateRange) ([]models.AgentPerformance, error)
	RecentActivities(ctx context.Context, limit int) ([]models.RecentActivity, error)
	LeadFunnel(ctx context.Context, rng models.DateRange) ([]models.FunnelStage, error)
}

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) dateRange(c *gin.Context) (models.DateRange, bool) {
	rng, err := h.analytics.ParseRange(c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		response.Error(c, err)
		return models.DateRange{}, false
	}
	return rng, true
}

func (h *AnalyticsHandler) respond(c *gin.Context, data interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil, middleware.ExtractMeta(c))
}

// Overview godoc
// @Summary Headline analytics
// @Tags Analytics
// @Produce json
// @Security ApiKeyAuth
// @Param startDate query string false "Range start (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "Range end (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	rng, ok := h.dateRange(c)
	if !ok {
		return
	}
	overview, err := h.analytics.Overview(c.Request.Context(), rng)
	h.respond(c, overview, err)
}

// Trends godoc
// @Summary Daily trends and distributions
// @Tags Analytics
// @Produce json
// @Security ApiKeyAuth
// @Param startDate query string false "Range start"
// @Param endDate query string false "Range end"
// @Success 200 {object} response.Envelope
// @Router /analytics/trends [get]
func (h *AnalyticsHandler) Trends(c *gin.Context) {
	rng, ok := h.dateRange(c)
	if !ok {
		return
	}
	trends, err := h.analytics.Trends(c.Request.Context(), rng)
	h.respond(c, trends, err)
}

// AgentPerformance ranks staff within the range.
func (h *AnalyticsHandler) AgentPerformance(c *gin.Context) {
	rng, ok := h.dateRange(c)
	if !ok {
		return
	}
	rows, err := h.analytics.AgentPerformance(c.Request.Context(), rng)
	h.respond(c, rows, err)
}

// RecentActivities returns the latest interactions.
func (h *AnalyticsHandler) RecentActivities(c *gin.Context) {
	limit, err := service.ParseLimit(c.Query("limit"))
	if err != nil {
		response.Error(c, err)
		return
	}
	activities, err := h.analytics.RecentActivities(c.Request.Context(), limit)
	h.respond(c, activities, err)
}

// LeadFunnel returns lead counts per funnel stage.
func (h *AnalyticsHandler) LeadFunnel(c *gin.Context) {
	rng, ok := h.dateRange(c)
	if !ok {
		return
	}
	funnel, err := h.analytics.LeadFunnel(c.Request.Context(), rng)
	h.respond(c, funnel, err)
}
