package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-crm/internal/models"
)

// AnalyticsRepository exposes read-only aggregation queries over leads and interactions.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// OverviewCounts are the raw numbers behind the overview block.
type OverviewCounts struct {
	TotalLeads        int `db:"total_leads"`
	AdmittedLeads     int `db:"admitted_leads"`
	TotalInteractions int `db:"total_interactions"`
	ActiveAgents      int `db:"active_agents"`
}

// Overview counts leads created and interactions logged within the range.
func (r *AnalyticsRepository) Overview(ctx context.Context, rng models.DateRange) (OverviewCounts, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM leads WHERE created_at BETWEEN $1 AND $2) AS total_leads,
		(SELECT COUNT(*) FROM leads WHERE status = 'admitted' AND created_at BETWEEN $1 AND $2) AS admitted_leads,
		(SELECT COUNT(*) FROM interactions WHERE date BETWEEN $1 AND $2) AS total_interactions,
		(SELECT COUNT(DISTINCT agent_id) FROM interactions WHERE agent_id IS NOT NULL AND date BETWEEN $1 AND $2) AS active_agents`
	var counts OverviewCounts
	if err := r.db.GetContext(ctx, &counts, query, rng.Start, rng.End); err != nil {
		return OverviewCounts{}, fmt.Errorf("query analytics overview: %w", err)
	}
	return counts, nil
}

// DailyLeads counts leads created per day, ordered by day.
func (r *AnalyticsRepository) DailyLeads(ctx context.Context, rng models.DateRange) ([]models.DailyCount, error) {
	const query = `SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS day, COUNT(*) AS count FROM leads WHERE created_at BETWEEN $1 AND $2 GROUP BY 1 ORDER BY 1`
	rows := make([]models.DailyCount, 0)
	if err := r.db.SelectContext(ctx, &rows, query, rng.Start, rng.End); err != nil {
		return nil, fmt.Errorf("query daily leads: %w", err)
	}
	return rows, nil
}

// DailyInteractions counts interactions logged per day, ordered by day.
func (r *AnalyticsRepository) DailyInteractions(ctx context.Context, rng models.DateRange) ([]models.DailyCount, error) {
	const query = `SELECT to_char(date_trunc('day', date), 'YYYY-MM-DD') AS day, COUNT(*) AS count FROM interactions WHERE date BETWEEN $1 AND $2 GROUP BY 1 ORDER BY 1`
	rows := make([]models.DailyCount, 0)
	if err := r.db.SelectContext(ctx, &rows, query, rng.Start, rng.End); err != nil {
		return nil, fmt.Errorf("query daily interactions: %w", err)
	}
	return rows, nil
}

// StatusCounts counts leads per stored status within the range.
func (r *AnalyticsRepository) StatusCounts(ctx context.Context, rng models.DateRange) ([]models.NameCount, error) {
	const query = `SELECT status AS name, COUNT(*) AS count FROM leads WHERE created_at BETWEEN $1 AND $2 GROUP BY status ORDER BY count DESC, status ASC`
	rows := make([]models.NameCount, 0)
	if err := r.db.SelectContext(ctx, &rows, query, rng.Start, rng.End); err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	return rows, nil
}

// CoursePopularity returns the most requested courses within the range.
func (r *AnalyticsRepository) CoursePopularity(ctx context.Context, rng models.DateRange, limit int) ([]models.NameCount, error) {
	const query = `SELECT course_interested AS name, COUNT(*) AS count FROM leads WHERE created_at BETWEEN $1 AND $2 GROUP BY course_interested ORDER BY count DESC, course_interested ASC LIMIT $3`
	rows := make([]models.NameCount, 0)
	if err := r.db.SelectContext(ctx, &rows, query, rng.Start, rng.End, limit); err != nil {
		return nil, fmt.Errorf("query course popularity: %w", err)
	}
	return rows, nil
}

// AgentPerformance returns raw per-staff counters. Conversions are leads moved to admitted within
// the range.
func (r *AnalyticsRepository) AgentPerformance(ctx context.Context, rng models.DateRange) ([]models.AgentPerformance, error) {
	const query = `SELECT u.id, u.name, u.email,
		(SELECT COUNT(*) FROM leads l WHERE l.assigned_to = u.id AND l.created_at BETWEEN $1 AND $2) AS leads_assigned,
		(SELECT COUNT(*) FROM interactions i WHERE i.agent_id = u.id AND i.date BETWEEN $1 AND $2) AS interactions,
		(SELECT COUNT(*) FROM leads l WHERE l.assigned_to = u.id AND l.status = 'admitted' AND l.updated_at BETWEEN $1 AND $2) AS conversions
	FROM users u WHERE u.role IN ('agent', 'lead') ORDER BY u.name ASC`
	rows := make([]models.AgentPerformance, 0)
	if err := r.db.SelectContext(ctx, &rows, query, rng.Start, rng.End); err != nil {
		return nil, fmt.Errorf("query agent performance: %w", err)
	}
	return rows, nil
}

// RecentActivityRow is an interaction joined with its agent and lead; missing joins are null.
type RecentActivityRow struct {
	Type      models.InteractionType `db:"type"`
	Remarks   string                 `db:"remarks"`
	Date      time.Time              `db:"date"`
	AgentName sql.NullString         `db:"agent_name"`
	LeadName  sql.NullString         `db:"lead_name"`
	Status    sql.NullString         `db:"status"`
}

// RecentActivities returns the latest interactions across all agents.
func (r *AnalyticsRepository) RecentActivities(ctx context.Context, limit int) ([]RecentActivityRow, error) {
	const query = `SELECT i.type, i.remarks, i.date, u.name AS agent_name, l.name AS lead_name, l.status AS status FROM interactions i LEFT JOIN users u ON u.id = i.agent_id LEFT JOIN leads l ON l.id = i.lead_id ORDER BY i.date DESC LIMIT $1`
	rows := make([]RecentActivityRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("query recent activities: %w", err)
	}
	return rows, nil
}
