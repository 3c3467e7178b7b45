package models

import (
	"strings"
	"time"
)

// LeadStatus is the funnel stage of a lead. Values are persisted lowercase.
type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "new"
	LeadStatusInterested    LeadStatus = "interested"
	LeadStatusNotInterested LeadStatus = "not_interested"
	LeadStatusFollowUp      LeadStatus = "follow_up"
	LeadStatusAdmitted      LeadStatus = "admitted"
)

// LeadStatuses lists every status in funnel order.
var LeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusInterested,
	LeadStatusNotInterested,
	LeadStatusFollowUp,
	LeadStatusAdmitted,
}

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label is the display form of the status.
func (s LeadStatus) Label() string {
	switch s {
	case LeadStatusNew:
		return "New"
	case LeadStatusInterested:
		return "Interested"
	case LeadStatusNotInterested:
		return "Not Interested"
	case LeadStatusFollowUp:
		return "Follow-up"
	case LeadStatusAdmitted:
		return "Admitted"
	}
	return string(s)
}

// LeadSource records how a lead reached the admissions office.
type LeadSource string

const (
	LeadSourceWebsite       LeadSource = "website"
	LeadSourceEvent         LeadSource = "event"
	LeadSourceReferral      LeadSource = "referral"
	LeadSourceAdvertisement LeadSource = "advertisement"
	LeadSourceOther         LeadSource = "other"
)

// Valid reports whether s is a known source.
func (s LeadSource) Valid() bool {
	switch s {
	case LeadSourceWebsite, LeadSourceEvent, LeadSourceReferral, LeadSourceAdvertisement, LeadSourceOther:
		return true
	}
	return false
}

// Lead is a prospective student tracked through the admissions funnel.
type Lead struct {
	ID               string       `db:"id" json:"id"`
	Name             string       `db:"name" json:"name"`
	Email            string       `db:"email" json:"email"`
	Phone            string       `db:"phone" json:"phone"`
	AlternatePhone   string       `db:"alternate_phone" json:"alternatePhone"`
	CourseInterested string       `db:"course_interested" json:"courseInterested"`
	Source           LeadSource   `db:"source" json:"source"`
	Status           LeadStatus   `db:"status" json:"status"`
	AssignedTo       *string      `db:"assigned_to" json:"assignedTo"`
	City             string       `db:"city" json:"city"`
	State            string       `db:"state" json:"state"`
	ParentName       string       `db:"parent_name" json:"parentName"`
	ParentPhone      string       `db:"parent_phone" json:"parentPhone"`
	LastFollowUp     *time.Time   `db:"last_follow_up" json:"lastFollowUp"`
	NextFollowUp     *time.Time   `db:"next_follow_up" json:"nextFollowUp"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
	Assignee         *UserSummary `db:"-" json:"assignee,omitempty"`
}

// IsAssignedTo reports whether userID is the lead's assignee.
func (l *Lead) IsAssignedTo(userID string) bool {
	return l != nil && l.AssignedTo != nil && *l.AssignedTo == userID
}

// LeadSummary is the populated view of a lead embedded in interactions.
type LeadSummary struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Phone  string     `json:"phone"`
	Status LeadStatus `json:"status"`
}

// LeadFilter scopes lead listing queries. Nil fields are not applied.
type LeadFilter struct {
	AssignedTo       *string
	Unassigned       bool
	Status           *LeadStatus
	Course           string
	NextFollowUpFrom *time.Time
	NextFollowUpTo   *time.Time
	OrderBy          string
	Limit            int
}

// LeadStats holds per-status counters. Agents is only set for the admin view.
type LeadStats struct {
	TotalLeads    int  `db:"total_leads" json:"totalLeads"`
	NewLeads      int  `db:"new_leads" json:"newLeads"`
	Interested    int  `db:"interested" json:"interested"`
	FollowUps     int  `db:"follow_ups" json:"followUps"`
	Converted     int  `db:"converted" json:"converted"`
	NotInterested int  `db:"not_interested" json:"notInterested"`
	Agents        *int `db:"-" json:"agents,omitempty"`
}

// CreateLeadRequest is the manual lead entry payload.
type CreateLeadRequest struct {
	Name             string     `json:"name" validate:"required"`
	Email            string     `json:"email" validate:"required,email"`
	Phone            string     `json:"phone" validate:"required"`
	AlternatePhone   string     `json:"alternatePhone"`
	CourseInterested string     `json:"courseInterested" validate:"required"`
	Source           LeadSource `json:"source" validate:"omitempty,oneof=website event referral advertisement other"`
	Status           LeadStatus `json:"status" validate:"omitempty,oneof=new interested not_interested follow_up admitted"`
	AssignedTo       *string    `json:"assignedTo"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	ParentName       string     `json:"parentName"`
	ParentPhone      string     `json:"parentPhone"`
	NextFollowUp     *time.Time `json:"nextFollowUp"`
}

// UpdateLeadRequest carries a partial lead update. AssignedTo is honoured for admins only; an
// empty string unassigns.
type UpdateLeadRequest struct {
	Name             *string     `json:"name" validate:"omitempty,min=1"`
	Email            *string     `json:"email" validate:"omitempty,email"`
	Phone            *string     `json:"phone" validate:"omitempty,min=1"`
	AlternatePhone   *string     `json:"alternatePhone"`
	CourseInterested *string     `json:"courseInterested" validate:"omitempty,min=1"`
	Source           *LeadSource `json:"source" validate:"omitempty,oneof=website event referral advertisement other"`
	Status           *LeadStatus `json:"status" validate:"omitempty,oneof=new interested not_interested follow_up admitted"`
	AssignedTo       *string     `json:"assignedTo"`
	City             *string     `json:"city"`
	State            *string     `json:"state"`
	ParentName       *string     `json:"parentName"`
	ParentPhone      *string     `json:"parentPhone"`
	LastFollowUp     *time.Time  `json:"lastFollowUp"`
	NextFollowUp     *time.Time  `json:"nextFollowUp"`
}

// AssignLeadRequest assigns one lead to an agent. AssignedTo is the primary key; agentId is
// accepted as an alias. Both empty unassigns.
type AssignLeadRequest struct {
	AssignedTo string `json:"assignedTo"`
	AgentID    string `json:"agentId"`
}

// Target returns the requested assignee, preferring assignedTo.
func (r AssignLeadRequest) Target() string {
	if v := strings.TrimSpace(r.AssignedTo); v != "" {
		return v
	}
	return strings.TrimSpace(r.AgentID)
}

// BulkAssignRequest assigns many leads to one lead-role user.
type BulkAssignRequest struct {
	LeadUserID string   `json:"leadUserId" validate:"required"`
	LeadIDs    []string `json:"leadIds" validate:"required,min=1"`
}

// BulkAssignResult reports how many of the requested leads were updated.
type BulkAssignResult struct {
	Msg       string `json:"msg"`
	Requested int    `json:"requested"`
	Updated   int    `json:"updated"`
}

// ImportRowError describes a rejected CSV row. Row is the 1-based data row number.
type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult summarises a CSV import.
type ImportResult struct {
	Success bool             `json:"success"`
	Count   int              `json:"count"`
	Errors  []ImportRowError `json:"errors"`
}
