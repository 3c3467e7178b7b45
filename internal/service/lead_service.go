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
	leadNotFound     = "Lead not found"
	leadForbidden    = "Not authorized to access this lead"
	recentLeadsLimit = 10
)

var leadMessages = map[string]string{
	"name":             "Name is required",
	"email":            "Please include a valid email",
	"phone":            "Phone number is required",
	"courseInterested": "Course interested is required",
	"source":           "Invalid source",
	"status":           "Invalid status",
}

type leadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	Delete(ctx context.Context, id string) error
	Assign(ctx context.Context, leadID string, userID *string, at time.Time) error
	AssignMany(ctx context.Context, leadIDs []string, userID string, at time.Time) (int, error)
	Stats(ctx context.Context, assignedTo *string) (models.LeadStats, error)
}

type staffDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountStaff(ctx context.Context) (int, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type assignmentNotifier interface {
	NotifyAssignment(staff *models.User, leadNames []string, total int)
}

// LeadService implements lead entry, scoped listing, statistics and assignment.
type LeadService struct {
	leads     leadRepository
	users     staffDirectory
	notifier  assignmentNotifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLeadService constructs a LeadService. notifier, cache and metrics may be nil.
func NewLeadService(leads leadRepository, users staffDirectory, notifier assignmentNotifier, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LeadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LeadService{
		leads:     leads,
		users:     users,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create stores a new lead. Non-admin creators become the assignee; admins may name any staff user.
func (s *LeadService) Create(ctx context.Context, actor models.Actor, req models.CreateLeadRequest) (*models.Lead, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.CourseInterested = strings.TrimSpace(req.CourseInterested)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, leadMessages)
	}

	lead := &models.Lead{
		Name:             strings.TrimSpace(req.Name),
		Email:            normaliseEmail(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		AlternatePhone:   strings.TrimSpace(req.AlternatePhone),
		CourseInterested: strings.TrimSpace(req.CourseInterested),
		Source:           req.Source,
		Status:           req.Status,
		City:             strings.TrimSpace(req.City),
		State:            strings.TrimSpace(req.State),
		ParentName:       strings.TrimSpace(req.ParentName),
		ParentPhone:      strings.TrimSpace(req.ParentPhone),
		NextFollowUp:     req.NextFollowUp,
	}
	if lead.Source == "" {
		lead.Source = models.LeadSourceWebsite
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	var assignee *models.User
	switch {
	case !actor.IsAdmin():
		id := actor.ID
		lead.AssignedTo = &id
	case req.AssignedTo != nil && *req.AssignedTo != "":
		staff, err := s.staff(ctx, *req.AssignedTo, nil)
		if err != nil {
			return nil, err
		}
		assignee = staff
		lead.AssignedTo = &staff.ID
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, internalError(err, "failed to create lead")
	}
	s.metrics.LeadCreated(string(lead.Source))
	s.cache.InvalidateAnalytics(ctx)
	if assignee != nil {
		summary := assignee.Summary()
		lead.Assignee = &summary
		s.notify(assignee, []string{lead.Name}, 1)
	}
	s.logger.Info("lead created", zap.String("lead_id", lead.ID), zap.String("actor_id", actor.ID))
	return lead, nil
}

// List returns every lead for admins and the actor's own leads otherwise, newest first.
func (s *LeadService) List(ctx context.Context, actor models.Actor) ([]models.Lead, error) {
	return s.list(ctx, s.scoped(actor, models.LeadFilter{}))
}

// Get returns one lead the actor may access.
func (s *LeadService) Get(ctx context.Context, actor models.Actor, id string) (*models.Lead, error) {
	lead, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanActOnLead(lead) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, leadForbidden)
	}
	return lead, nil
}

// Update applies a partial update. Only admins may change the assignee.
func (s *LeadService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdateLeadRequest) (*models.Lead, error) {
	req.Name, req.Phone, req.CourseInterested = trimmed(req.Name), trimmed(req.Phone), trimmed(req.CourseInterested)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, leadMessages)
	}
	lead, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	applyLeadUpdate(lead, req)

	var newAssignee *models.User
	if req.AssignedTo != nil && actor.IsAdmin() {
		if *req.AssignedTo == "" {
			lead.AssignedTo = nil
			lead.Assignee = nil
		} else if !lead.IsAssignedTo(*req.AssignedTo) {
			staff, err := s.staff(ctx, *req.AssignedTo, nil)
			if err != nil {
				return nil, err
			}
			newAssignee = staff
			summary := staff.Summary()
			lead.AssignedTo = &staff.ID
			lead.Assignee = &summary
		}
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, leadNotFound)
		}
		return nil, internalError(err, "failed to update lead")
	}
	s.cache.InvalidateAnalytics(ctx)
	if newAssignee != nil {
		s.metrics.LeadsAssigned("single", 1)
		s.notify(newAssignee, []string{lead.Name}, 1)
	}
	return lead, nil
}

func applyLeadUpdate(lead *models.Lead, req models.UpdateLeadRequest) {
	if req.Name != nil {
		lead.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		lead.Email = normaliseEmail(*req.Email)
	}
	if req.Phone != nil {
		lead.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.AlternatePhone != nil {
		lead.AlternatePhone = strings.TrimSpace(*req.AlternatePhone)
	}
	if req.CourseInterested != nil {
		lead.CourseInterested = strings.TrimSpace(*req.CourseInterested)
	}
	if req.Source != nil {
		lead.Source = *req.Source
	}
	if req.Status != nil {
		lead.Status = *req.Status
	}
	if req.City != nil {
		lead.City = strings.TrimSpace(*req.City)
	}
	if req.State != nil {
		lead.State = strings.TrimSpace(*req.State)
	}
	if req.ParentName != nil {
		lead.ParentName = strings.TrimSpace(*req.ParentName)
	}
	if req.ParentPhone != nil {
		lead.ParentPhone = strings.TrimSpace(*req.ParentPhone)
	}
	if req.LastFollowUp != nil {
		lead.LastFollowUp = req.LastFollowUp
	}
	if req.NextFollowUp != nil {
		lead.NextFollowUp = req.NextFollowUp
	}
}

// Delete removes a lead and, through the schema, its interactions.
func (s *LeadService) Delete(ctx context.Context, actor models.Actor, id string) error {
	lead, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.leads.Delete(ctx, lead.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, leadNotFound)
		}
		return internalError(err, "failed to delete lead")
	}
	s.cache.InvalidateAnalytics(ctx)
	recordAudit(ctx, s.users, s.logger, actor, models.AuditActionLeadDelete, "leads", lead.ID,
		map[string]interface{}{"name": lead.Name, "email": lead.Email, "status": lead.Status}, nil)
	return nil
}

// Unassigned lists leads without an assignee.
func (s *LeadService) Unassigned(ctx context.Context) ([]models.Lead, error) {
	return s.list(ctx, models.LeadFilter{Unassigned: true})
}

// AssignedToMe lists the actor's leads regardless of role.
func (s *LeadService) AssignedToMe(ctx context.Context, actor models.Actor) ([]models.Lead, error) {
	id := actor.ID
	return s.list(ctx, models.LeadFilter{AssignedTo: &id})
}

// Recent returns the actor's most recently created leads.
func (s *LeadService) Recent(ctx context.Context, actor models.Actor) ([]models.Lead, error) {
	id := actor.ID
	return s.list(ctx, models.LeadFilter{AssignedTo: &id, Limit: recentLeadsLimit})
}

// ByStatus lists visible leads with the given status.
func (s *LeadService) ByStatus(ctx context.Context, actor models.Actor, status models.LeadStatus) ([]models.Lead, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid status")
	}
	return s.list(ctx, s.scoped(actor, models.LeadFilter{Status: &status}))
}

// ByCourse lists visible leads whose course contains course, ignoring case.
func (s *LeadService) ByCourse(ctx context.Context, actor models.Actor, course string) ([]models.Lead, error) {
	course = strings.TrimSpace(course)
	if course == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Course is required")
	}
	return s.list(ctx, s.scoped(actor, models.LeadFilter{Course: course}))
}

// FollowUpsToday lists visible leads whose next follow-up falls on the current local day.
func (s *LeadService) FollowUpsToday(ctx context.Context, actor models.Actor) ([]models.Lead, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return s.list(ctx, s.scoped(actor, models.LeadFilter{
		NextFollowUpFrom: &start,
		NextFollowUpTo:   &end,
		OrderBy:          "next_follow_up_asc",
	}))
}

// AdminStats counts every lead per status plus the number of staff users.
func (s *LeadService) AdminStats(ctx context.Context) (models.LeadStats, error) {
	stats, err := s.leads.Stats(ctx, nil)
	if err != nil {
		return models.LeadStats{}, internalError(err, "failed to compute lead stats")
	}
	agents, err := s.users.CountStaff(ctx)
	if err != nil {
		return models.LeadStats{}, internalError(err, "failed to count agents")
	}
	stats.Agents = &agents
	return stats, nil
}

// AgentStats counts the actor's leads per status.
func (s *LeadService) AgentStats(ctx context.Context, actor models.Actor) (models.LeadStats, error) {
	id := actor.ID
	stats, err := s.leads.Stats(ctx, &id)
	if err != nil {
		return models.LeadStats{}, internalError(err, "failed to compute lead stats")
	}
	return stats, nil
}

// Stats returns the admin view for admins and the personal view otherwise.
func (s *LeadService) Stats(ctx context.Context, actor models.Actor) (models.LeadStats, error) {
	if actor.IsAdmin() {
		return s.AdminStats(ctx)
	}
	return s.AgentStats(ctx, actor)
}

// Assign sets the agent of one lead. An empty agent id unassigns it.
func (s *LeadService) Assign(ctx context.Context, actor models.Actor, leadID string, req models.AssignLeadRequest) (*models.Lead, error) {
	lead, err := s.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	previous := lead.AssignedTo

	var agent *models.User
	agentID := req.Target()
	if agentID != "" {
		agent, err = s.staff(ctx, agentID, func(u *models.User) bool { return u.Role == models.RoleAgent })
		if err != nil {
			return nil, retitle(err, appErrors.ErrValidation, "Invalid agent ID")
		}
		lead.AssignedTo = &agent.ID
		summary := agent.Summary()
		lead.Assignee = &summary
	} else {
		lead.AssignedTo = nil
		lead.Assignee = nil
	}

	at := s.now().UTC()
	if err := s.leads.Assign(ctx, lead.ID, lead.AssignedTo, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, leadNotFound)
		}
		return nil, internalError(err, "failed to assign lead")
	}
	lead.UpdatedAt = at
	s.cache.InvalidateAnalytics(ctx)

	recordAudit(ctx, s.users, s.logger, actor, models.AuditActionLeadAssign, "leads", lead.ID,
		map[string]interface{}{"assignedTo": previous}, map[string]interface{}{"assignedTo": lead.AssignedTo})
	if agent != nil {
		s.metrics.LeadsAssigned("single", 1)
		s.notify(agent, []string{lead.Name}, 1)
	}
	return lead, nil
}

// BulkAssign assigns many leads to one lead-role user in a single write. Unknown or malformed
// lead ids are skipped and reflected in the updated count.
func (s *LeadService) BulkAssign(ctx context.Context, actor models.Actor, req models.BulkAssignRequest) (*models.BulkAssignResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, map[string]string{
			"leadUserId": "Lead user ID is required",
			"leadIds":    "Lead IDs are required",
		})
	}
	target, err := s.staff(ctx, req.LeadUserID, func(u *models.User) bool { return u.Role == models.RoleLead })
	if err != nil {
		return nil, retitle(err, appErrors.ErrNotFound, "Lead user not found")
	}

	ids := make([]string, 0, len(req.LeadIDs))
	seen := make(map[string]struct{}, len(req.LeadIDs))
	for _, id := range req.LeadIDs {
		if _, dup := seen[id]; dup || !validID(id) {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	updated, err := s.leads.AssignMany(ctx, ids, target.ID, s.now().UTC())
	if err != nil {
		return nil, internalError(err, "failed to assign leads")
	}
	s.cache.InvalidateAnalytics(ctx)

	recordAudit(ctx, s.users, s.logger, actor, models.AuditActionLeadBulkAssign, "leads", "", nil,
		map[string]interface{}{"leadUserId": target.ID, "requested": len(req.LeadIDs), "updated": updated})
	s.metrics.LeadsAssigned("bulk", updated)
	s.notify(target, nil, updated)
	if updated < len(req.LeadIDs) {
		s.logger.Info("bulk assignment skipped unknown leads",
			zap.Int("requested", len(req.LeadIDs)), zap.Int("updated", updated))
	}

	return &models.BulkAssignResult{
		Msg:       "Leads assigned successfully",
		Requested: len(req.LeadIDs),
		Updated:   updated,
	}, nil
}

func (s *LeadService) notify(staff *models.User, leadNames []string, total int) {
	if s.notifier != nil {
		s.notifier.NotifyAssignment(staff, leadNames, total)
	}
}

// retitle replaces a validation failure with kind and message, passing other errors through.
func retitle(err error, kind *appErrors.Error, message string) error {
	if errors.Is(err, appErrors.ErrValidation) {
		return appErrors.Clone(kind, message)
	}
	return err
}

func (s *LeadService) scoped(actor models.Actor, filter models.LeadFilter) models.LeadFilter {
	if !actor.IsAdmin() {
		id := actor.ID
		filter.AssignedTo = &id
	}
	return filter
}

func (s *LeadService) list(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	leads, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list leads")
	}
	return leads, nil
}

func (s *LeadService) load(ctx context.Context, id string) (*models.Lead, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, leadNotFound)
	}
	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, leadNotFound)
	}
	return lead, nil
}

// staff loads a user that may hold leads. accept narrows the allowed roles further.
func (s *LeadService) staff(ctx context.Context, id string, accept func(*models.User) bool) (*models.User, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid assignee")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid assignee")
		}
		return nil, internalError(err, "failed to load assignee")
	}
	if !user.Role.IsStaff() || (accept != nil && !accept(user)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid assignee")
	}
	return user, nil
}
