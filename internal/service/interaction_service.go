package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-crm/internal/models"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
)

const (
	interactionNotFound = "Interaction not found"
	myRecentLimit       = 5
	overallRecentLimit  = 10
)

var interactionMessages = map[string]string{
	"lead":         "Lead ID is required",
	"type":         "Type is required",
	"type.oneof":   "Type must be call, sms, whatsapp or email",
	"remarks":      "Remarks are required",
	"statusBefore": "Invalid status",
	"statusAfter":  "Invalid status",
	"duration":     "Duration must be a positive number",
}

type interactionRepository interface {
	Create(ctx context.Context, interaction *models.Interaction, change *models.LeadChange) error
	Update(ctx context.Context, interaction *models.Interaction, change *models.LeadChange) error
	FindByID(ctx context.Context, id string) (*models.Interaction, error)
	List(ctx context.Context, filter models.InteractionFilter) ([]models.Interaction, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, agentID *string) (models.InteractionStats, error)
}

type leadReader interface {
	FindByID(ctx context.Context, id string) (*models.Lead, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// InteractionService records contact attempts and keeps the lead's status in step with them.
type InteractionService struct {
	repo      interactionRepository
	leads     leadReader
	users     userReader
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewInteractionService constructs an InteractionService.
func NewInteractionService(repo interactionRepository, leads leadReader, users userReader, audit auditLogger, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *InteractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InteractionService{
		repo:      repo,
		leads:     leads,
		users:     users,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create logs an interaction against a lead the actor may access. When a new status or follow-up
// date is given the lead is updated in the same transaction.
func (s *InteractionService) Create(ctx context.Context, actor models.Actor, req models.CreateInteractionRequest) (*models.Interaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, interactionMessages)
	}
	if strings.TrimSpace(req.Remarks) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Remarks are required")
	}

	lead, err := s.lead(ctx, req.Lead)
	if err != nil {
		return nil, err
	}
	if !actor.CanActOnLead(lead) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, leadForbidden)
	}

	at := s.now().UTC()
	agentID := actor.ID
	interaction := &models.Interaction{
		LeadID:       lead.ID,
		AgentID:      &agentID,
		Type:         req.Type,
		Remarks:      strings.TrimSpace(req.Remarks),
		StatusBefore: lead.Status,
		StatusAfter:  lead.Status,
		Duration:     req.Duration,
		FollowUpDate: req.FollowUpDate,
		Date:         at,
	}
	if req.StatusBefore != nil {
		interaction.StatusBefore = *req.StatusBefore
	}
	if req.StatusAfter != nil {
		interaction.StatusAfter = *req.StatusAfter
	}

	var change *models.LeadChange
	if req.StatusAfter != nil || req.FollowUpDate != nil {
		change = &models.LeadChange{
			LeadID:       lead.ID,
			Status:       interaction.StatusAfter,
			NextFollowUp: req.FollowUpDate,
			At:           at,
		}
	}

	if err := s.repo.Create(ctx, interaction, change); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, leadNotFound)
		}
		return nil, internalError(err, "failed to record interaction")
	}
	s.metrics.InteractionLogged(string(interaction.Type))
	s.cache.InvalidateAnalytics(ctx)

	status := lead.Status
	if change != nil {
		status = change.Status
	}
	interaction.LeadInfo = &models.LeadSummary{ID: lead.ID, Name: lead.Name, Email: lead.Email, Phone: lead.Phone, Status: status}
	s.logger.Info("interaction recorded",
		zap.String("interaction_id", interaction.ID),
		zap.String("lead_id", lead.ID),
		zap.Bool("lead_changed", change != nil))
	return interaction, nil
}

// List returns every interaction, newest first.
func (s *InteractionService) List(ctx context.Context) ([]models.Interaction, error) {
	return s.list(ctx, models.InteractionFilter{})
}

// Mine returns the actor's interactions, newest first.
func (s *InteractionService) Mine(ctx context.Context, actor models.Actor) ([]models.Interaction, error) {
	id := actor.ID
	return s.list(ctx, models.InteractionFilter{AgentID: &id})
}

// RecentMine returns the actor's five latest interactions.
func (s *InteractionService) RecentMine(ctx context.Context, actor models.Actor) ([]models.Interaction, error) {
	id := actor.ID
	return s.list(ctx, models.InteractionFilter{AgentID: &id, Limit: myRecentLimit})
}

// ForLead returns the history of a lead the actor may access.
func (s *InteractionService) ForLead(ctx context.Context, actor models.Actor, leadID string) ([]models.Interaction, error) {
	lead, err := s.lead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActOnLead(lead) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, leadForbidden)
	}
	id := lead.ID
	return s.list(ctx, models.InteractionFilter{LeadID: &id})
}

// AgentStats aggregates one staff user's interactions.
func (s *InteractionService) AgentStats(ctx context.Context, agentID string) (models.InteractionStats, error) {
	if !validID(agentID) {
		return models.InteractionStats{}, appErrors.Clone(appErrors.ErrNotFound, "Agent not found")
	}
	if _, err := s.users.FindByID(ctx, agentID); err != nil {
		return models.InteractionStats{}, lookupError(err, "Agent not found")
	}
	stats, err := s.repo.Stats(ctx, &agentID)
	if err != nil {
		return models.InteractionStats{}, internalError(err, "failed to compute interaction stats")
	}
	return stats, nil
}

// OverallStats aggregates every interaction and attaches the latest ten.
func (s *InteractionService) OverallStats(ctx context.Context) (models.InteractionStats, error) {
	stats, err := s.repo.Stats(ctx, nil)
	if err != nil {
		return models.InteractionStats{}, internalError(err, "failed to compute interaction stats")
	}
	recent, err := s.list(ctx, models.InteractionFilter{Limit: overallRecentLimit})
	if err != nil {
		return models.InteractionStats{}, err
	}
	stats.Recent = recent
	return stats, nil
}

// Get returns an interaction to an admin or to the agent who logged it.
func (s *InteractionService) Get(ctx context.Context, actor models.Actor, id string) (*models.Interaction, error) {
	interaction, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !interaction.IsAgent(actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not authorized to view this interaction")
	}
	return interaction, nil
}

// Update edits the mutable fields. A new status or follow-up date is pushed to the lead in the
// same transaction.
func (s *InteractionService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdateInteractionRequest) (*models.Interaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, interactionMessages)
	}
	interaction, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !interaction.IsAgent(actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not authorized to update this interaction")
	}

	if req.Remarks != nil && strings.TrimSpace(*req.Remarks) != "" {
		interaction.Remarks = strings.TrimSpace(*req.Remarks)
	}
	if req.StatusAfter != nil {
		interaction.StatusAfter = *req.StatusAfter
	}
	if req.Duration != nil {
		interaction.Duration = req.Duration
	}
	if req.FollowUpDate != nil {
		interaction.FollowUpDate = req.FollowUpDate
	}

	var change *models.LeadChange
	if req.StatusAfter != nil || req.FollowUpDate != nil {
		status := interaction.StatusAfter
		if req.StatusAfter == nil && interaction.LeadInfo != nil {
			status = interaction.LeadInfo.Status
		}
		change = &models.LeadChange{
			LeadID:       interaction.LeadID,
			Status:       status,
			NextFollowUp: req.FollowUpDate,
			At:           s.now().UTC(),
		}
	}

	if err := s.repo.Update(ctx, interaction, change); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, interactionNotFound)
		}
		return nil, internalError(err, "failed to update interaction")
	}
	if change != nil {
		s.cache.InvalidateAnalytics(ctx)
		if interaction.LeadInfo != nil {
			interaction.LeadInfo.Status = change.Status
		}
	}
	return interaction, nil
}

// Delete removes an interaction. The lead keeps whatever state the interaction gave it.
func (s *InteractionService) Delete(ctx context.Context, actor models.Actor, id string) error {
	interaction, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, interaction.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, interactionNotFound)
		}
		return internalError(err, "failed to delete interaction")
	}
	s.cache.InvalidateAnalytics(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionInteractionDrop, "interactions", interaction.ID,
		map[string]interface{}{"lead": interaction.LeadID, "type": interaction.Type, "remarks": interaction.Remarks}, nil)
	return nil
}

func (s *InteractionService) list(ctx context.Context, filter models.InteractionFilter) ([]models.Interaction, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list interactions")
	}
	return items, nil
}

func (s *InteractionService) load(ctx context.Context, id string) (*models.Interaction, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, interactionNotFound)
	}
	interaction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, interactionNotFound)
	}
	return interaction, nil
}

func (s *InteractionService) lead(ctx context.Context, id string) (*models.Lead, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, leadNotFound)
	}
	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, leadNotFound)
	}
	return lead, nil
}
