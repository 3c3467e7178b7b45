package models

import "time"

// InteractionType is the channel used to contact a lead.
type InteractionType string

const (
	InteractionCall     InteractionType = "call"
	InteractionSMS      InteractionType = "sms"
	InteractionWhatsApp InteractionType = "whatsapp"
	InteractionEmail    InteractionType = "email"
)

// InteractionTypes lists every channel.
var InteractionTypes = []InteractionType{InteractionCall, InteractionSMS, InteractionWhatsApp, InteractionEmail}

// Interaction is one logged contact attempt against a lead. Lead, agent and type never change
// after creation.
type Interaction struct {
	ID           string          `db:"id" json:"id"`
	LeadID       string          `db:"lead_id" json:"lead"`
	AgentID      *string         `db:"agent_id" json:"agent"`
	Type         InteractionType `db:"type" json:"type"`
	Remarks      string          `db:"remarks" json:"remarks"`
	StatusBefore LeadStatus      `db:"status_before" json:"statusBefore"`
	StatusAfter  LeadStatus      `db:"status_after" json:"statusAfter"`
	Duration     *int            `db:"duration" json:"duration,omitempty"`
	FollowUpDate *time.Time      `db:"follow_up_date" json:"followUpDate,omitempty"`
	Date         time.Time       `db:"date" json:"date"`
	AgentInfo    *UserSummary    `db:"-" json:"agentInfo,omitempty"`
	LeadInfo     *LeadSummary    `db:"-" json:"leadInfo,omitempty"`
}

// IsAgent reports whether userID logged the interaction.
func (i *Interaction) IsAgent(userID string) bool {
	return i != nil && i.AgentID != nil && *i.AgentID == userID
}

// InteractionFilter scopes interaction listing queries.
type InteractionFilter struct {
	AgentID *string
	LeadID  *string
	Limit   int
}

// LeadChange is the lead side effect of recording an interaction.
type LeadChange struct {
	LeadID       string
	Status       LeadStatus
	NextFollowUp *time.Time
	At           time.Time
}

// CreateInteractionRequest is the payload for logging an interaction.
type CreateInteractionRequest struct {
	Lead         string          `json:"lead" validate:"required"`
	Type         InteractionType `json:"type" validate:"required,oneof=call sms whatsapp email"`
	Remarks      string          `json:"remarks" validate:"required"`
	StatusBefore *LeadStatus     `json:"statusBefore" validate:"omitempty,oneof=new interested not_interested follow_up admitted"`
	StatusAfter  *LeadStatus     `json:"statusAfter" validate:"omitempty,oneof=new interested not_interested follow_up admitted"`
	Duration     *int            `json:"duration" validate:"omitempty,min=0"`
	FollowUpDate *time.Time      `json:"followUpDate"`
}

// UpdateInteractionRequest carries the mutable interaction fields.
type UpdateInteractionRequest struct {
	Remarks      *string     `json:"remarks" validate:"omitempty,min=1"`
	StatusAfter  *LeadStatus `json:"statusAfter" validate:"omitempty,oneof=new interested not_interested follow_up admitted"`
	Duration     *int        `json:"duration" validate:"omitempty,min=0"`
	FollowUpDate *time.Time  `json:"followUpDate"`
}

// InteractionTypeCounts counts interactions per channel.
type InteractionTypeCounts struct {
	Call     int `db:"call" json:"call"`
	SMS      int `db:"sms" json:"sms"`
	WhatsApp int `db:"whatsapp" json:"whatsapp"`
	Email    int `db:"email" json:"email"`
}

// InteractionConversions counts interactions by resulting status.
type InteractionConversions struct {
	Interested    int `db:"interested" json:"interested"`
	NotInterested int `db:"not_interested" json:"notInterested"`
	FollowUp      int `db:"follow_up" json:"followUp"`
}

// InteractionStats aggregates interactions for one agent or globally.
type InteractionStats struct {
	TotalInteractions int                    `json:"totalInteractions"`
	ByType            InteractionTypeCounts  `json:"byType"`
	Conversions       InteractionConversions `json:"conversions"`
	Recent            []Interaction          `json:"recentInteractions,omitempty"`
}
