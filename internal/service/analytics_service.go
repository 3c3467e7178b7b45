package service

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/internal/repository"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
)

const (
	defaultRecentActivities = 10
	maxRecentActivities     = 100
	coursePopularityLimit   = 10
	dateOnlyLayout          = "2006-01-02"
)

var funnelStages = []models.LeadStatus{
	models.LeadStatusNew,
	models.LeadStatusInterested,
	models.LeadStatusFollowUp,
	models.LeadStatusAdmitted,
}

// AnalyticsRepository describes the aggregation queries required by AnalyticsService.
type AnalyticsRepository interface {
	Overview(ctx context.Context, rng models.DateRange) (repository.OverviewCounts, error)
	DailyLeads(ctx context.Context, rng models.DateRange) ([]models.DailyCount, error)
	DailyInteractions(ctx context.Context, rng models.DateRange) ([]models.DailyCount, error)
	StatusCounts(ctx context.Context, rng models.DateRange) ([]models.NameCount, error)
	CoursePopularity(ctx context.Context, rng models.DateRange, limit int) ([]models.NameCount, error)
	AgentPerformance(ctx context.Context, rng models.DateRange) ([]models.AgentPerformance, error)
	RecentActivities(ctx context.Context, limit int) ([]repository.RecentActivityRow, error)
}

// AnalyticsService is the single aggregation path for dashboard reports. Results are cached per
// endpoint and range.
type AnalyticsService struct {
	repo        AnalyticsRepository
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	defaultDays int
	now         func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, defaultDays int, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &AnalyticsService{
		repo:        repo,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		defaultDays: defaultDays,
		now:         time.Now,
	}
}

// ParseRange builds a range from optional query values. A missing start defaults to defaultDays
// before the end; a missing end defaults to now. Date-only ends cover the whole day.
func (s *AnalyticsService) ParseRange(startRaw, endRaw string) (models.DateRange, error) {
	end := s.now().UTC()
	if strings.TrimSpace(endRaw) != "" {
		parsed, dateOnly, err := parseRangeValue(endRaw)
		if err != nil {
			return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "Invalid endDate")
		}
		end = parsed
		if dateOnly {
			end = parsed.Add(24*time.Hour - time.Nanosecond)
		}
	}
	start := end.AddDate(0, 0, -s.defaultDays)
	if strings.TrimSpace(startRaw) != "" {
		parsed, _, err := parseRangeValue(startRaw)
		if err != nil {
			return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "Invalid startDate")
		}
		start = parsed
	}
	if start.After(end) {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "startDate must be before endDate")
	}
	return models.DateRange{Start: start, End: end}, nil
}

func parseRangeValue(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Overview returns headline counters. The conversion rate is admitted over total, as a percentage
// rounded to one decimal.
func (s *AnalyticsService) Overview(ctx context.Context, rng models.DateRange) (*models.AnalyticsOverview, error) {
	key := makeAnalyticsCacheKey("overview", formatTime(rng.Start), formatTime(rng.End))
	var cached models.AnalyticsOverview
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	counts, err := s.repo.Overview(ctx, rng)
	if err != nil {
		return nil, internalError(err, "failed to load overview")
	}
	s.metrics.ObserveDBQuery("analytics_overview", time.Since(start))

	overview := &models.AnalyticsOverview{
		TotalLeads:        counts.TotalLeads,
		TotalInteractions: counts.TotalInteractions,
		ConversionRate:    percentage(counts.AdmittedLeads, counts.TotalLeads),
		ActiveAgents:      counts.ActiveAgents,
	}
	s.cache.Set(ctx, key, overview, 0)
	return overview, nil
}

// Trends merges daily lead and interaction counts and adds status and course distributions.
func (s *AnalyticsService) Trends(ctx context.Context, rng models.DateRange) (*models.AnalyticsTrends, error) {
	key := makeAnalyticsCacheKey("trends", formatTime(rng.Start), formatTime(rng.End))
	var cached models.AnalyticsTrends
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	leads, err := s.repo.DailyLeads(ctx, rng)
	if err != nil {
		return nil, internalError(err, "failed to load lead trends")
	}
	interactions, err := s.repo.DailyInteractions(ctx, rng)
	if err != nil {
		return nil, internalError(err, "failed to load interaction trends")
	}
	statuses, err := s.repo.StatusCounts(ctx, rng)
	if err != nil {
		return nil, internalError(err, "failed to load status distribution")
	}
	courses, err := s.repo.CoursePopularity(ctx, rng, coursePopularityLimit)
	if err != nil {
		return nil, internalError(err, "failed to load course popularity")
	}
	s.metrics.ObserveDBQuery("analytics_trends", time.Since(start))

	distribution := make([]models.NameCount, 0, len(statuses))
	for _, row := range statuses {
		distribution = append(distribution, models.NameCount{Name: models.LeadStatus(row.Name).Label(), Count: row.Count})
	}
	if courses == nil {
		courses = make([]models.NameCount, 0)
	}

	trends := &models.AnalyticsTrends{
		DailyData:          mergeDaily(leads, interactions),
		StatusDistribution: distribution,
		CoursePopularity:   courses,
	}
	s.cache.Set(ctx, key, trends, 0)
	return trends, nil
}

func mergeDaily(leads, interactions []models.DailyCount) []models.DailyPoint {
	points := make(map[string]*models.DailyPoint)
	for _, row := range leads {
		point, ok := points[row.Day]
		if !ok {
			point = &models.DailyPoint{Date: row.Day}
			points[row.Day] = point
		}
		point.Leads += row.Count
	}
	for _, row := range interactions {
		point, ok := points[row.Day]
		if !ok {
			point = &models.DailyPoint{Date: row.Day}
			points[row.Day] = point
		}
		point.Interactions += row.Count
	}
	out := make([]models.DailyPoint, 0, len(points))
	for _, point := range points {
		out = append(out, *point)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// AgentPerformance ranks staff by interactions plus conversions, highest first.
func (s *AnalyticsService) AgentPerformance(ctx context.Context, rng models.DateRange) ([]models.AgentPerformance, error) {
	key := makeAnalyticsCacheKey("agents", formatTime(rng.Start), formatTime(rng.End))
	var cached []models.AgentPerformance
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	start := time.Now()
	rows, err := s.repo.AgentPerformance(ctx, rng)
	if err != nil {
		return nil, internalError(err, "failed to load agent performance")
	}
	s.metrics.ObserveDBQuery("analytics_agents", time.Since(start))

	for i := range rows {
		rows[i].ConversionRate = percentage(rows[i].Conversions, rows[i].LeadsAssigned)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Interactions+rows[i].Conversions > rows[j].Interactions+rows[j].Conversions
	})
	if rows == nil {
		rows = make([]models.AgentPerformance, 0)
	}
	s.cache.Set(ctx, key, rows, 0)
	return rows, nil
}

// ParseLimit reads the recent activity limit, defaulting to 10 and capping at 100.
func ParseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultRecentActivities, nil
	}
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "Invalid limit")
	}
	if limit > maxRecentActivities {
		limit = maxRecentActivities
	}
	return limit, nil
}

// RecentActivities returns the latest interactions with display fallbacks for removed agents or
// leads.
func (s *AnalyticsService) RecentActivities(ctx context.Context, limit int) ([]models.RecentActivity, error) {
	if limit <= 0 {
		limit = defaultRecentActivities
	}
	key := makeAnalyticsCacheKey("recent", strconv.Itoa(limit))
	var cached []models.RecentActivity
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	start := time.Now()
	rows, err := s.repo.RecentActivities(ctx, limit)
	if err != nil {
		return nil, internalError(err, "failed to load recent activities")
	}
	s.metrics.ObserveDBQuery("analytics_recent", time.Since(start))

	activities := make([]models.RecentActivity, 0, len(rows))
	for _, row := range rows {
		activity := models.RecentActivity{
			Type:      row.Type,
			Remarks:   row.Remarks,
			Date:      row.Date,
			AgentName: "Unknown Agent",
			LeadName:  "Unknown Lead",
			Status:    "Unknown",
		}
		if row.AgentName.Valid && row.AgentName.String != "" {
			activity.AgentName = row.AgentName.String
		}
		if row.LeadName.Valid && row.LeadName.String != "" {
			activity.LeadName = row.LeadName.String
		}
		if row.Status.Valid && row.Status.String != "" {
			activity.Status = models.LeadStatus(row.Status.String).Label()
		}
		activities = append(activities, activity)
	}
	s.cache.Set(ctx, key, activities, 0)
	return activities, nil
}

// LeadFunnel reports lead counts for the fixed funnel stages. Missing stages count zero.
func (s *AnalyticsService) LeadFunnel(ctx context.Context, rng models.DateRange) ([]models.FunnelStage, error) {
	key := makeAnalyticsCacheKey("funnel", formatTime(rng.Start), formatTime(rng.End))
	var cached []models.FunnelStage
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	start := time.Now()
	rows, err := s.repo.StatusCounts(ctx, rng)
	if err != nil {
		return nil, internalError(err, "failed to load lead funnel")
	}
	s.metrics.ObserveDBQuery("analytics_funnel", time.Since(start))

	counts := make(map[models.LeadStatus]int, len(rows))
	for _, row := range rows {
		counts[models.LeadStatus(row.Name)] += row.Count
	}
	funnel := make([]models.FunnelStage, 0, len(funnelStages))
	for _, stage := range funnelStages {
		funnel = append(funnel, models.FunnelStage{Stage: stage.Label(), Count: counts[stage]})
	}
	s.cache.Set(ctx, key, funnel, 0)
	return funnel, nil
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
