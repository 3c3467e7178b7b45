package models

import "time"

// DateRange bounds analytics queries. Both ends are inclusive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AnalyticsOverview is the headline dashboard block.
type AnalyticsOverview struct {
	TotalLeads        int     `json:"totalLeads"`
	TotalInteractions int     `json:"totalInteractions"`
	ConversionRate    float64 `json:"conversionRate"`
	ActiveAgents      int     `json:"activeAgents"`
}

// DailyCount is a per-day count row.
type DailyCount struct {
	Day   string `db:"day"`
	Count int    `db:"count"`
}

// DailyPoint merges lead and interaction counts for one day.
type DailyPoint struct {
	Date         string `json:"date"`
	Leads        int    `json:"leads"`
	Interactions int    `json:"interactions"`
}

// NameCount is a labelled counter used by distributions.
type NameCount struct {
	Name  string `db:"name" json:"name"`
	Count int    `db:"count" json:"count"`
}

// AnalyticsTrends groups time series and distributions.
type AnalyticsTrends struct {
	DailyData          []DailyPoint `json:"dailyData"`
	StatusDistribution []NameCount  `json:"statusDistribution"`
	CoursePopularity   []NameCount  `json:"coursePopularity"`
}

// AgentPerformance ranks a staff user within a date range.
type AgentPerformance struct {
	ID             string  `db:"id" json:"id"`
	Name           string  `db:"name" json:"name"`
	Email          string  `db:"email" json:"email"`
	LeadsAssigned  int     `db:"leads_assigned" json:"leadsAssigned"`
	Interactions   int     `db:"interactions" json:"interactions"`
	Conversions    int     `db:"conversions" json:"conversions"`
	ConversionRate float64 `db:"-" json:"conversionRate"`
}

// RecentActivity is an interaction denormalised for activity feeds.
type RecentActivity struct {
	Type      InteractionType `json:"type"`
	Remarks   string          `json:"remarks"`
	Date      time.Time       `json:"date"`
	AgentName string          `json:"agentName"`
	LeadName  string          `json:"leadName"`
	Status    string          `json:"status"`
}

// FunnelStage is one stage of the admissions funnel.
type FunnelStage struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}
