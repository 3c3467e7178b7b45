package handler

import (
	"context"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/internal/service"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
)

type fakeAuthService struct {
	lastLogin    models.LoginRequest
	lastRegister models.RegisterRequest
	err          error
}

func (f *fakeAuthService) Login(_ context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	f.lastLogin = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.AuthResponse{Token: "signed", User: models.User{ID: agentID, Email: req.Email}}, nil
}

func (f *fakeAuthService) Register(_ context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	f.lastRegister = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.AuthResponse{Token: "signed", User: models.User{ID: agentID, Role: models.RoleAgent}}, nil
}

func (f *fakeAuthService) RegisterLeadUser(_ context.Context, req models.RegisterLeadUserRequest) (*models.AuthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.AuthResponse{Token: "signed", User: models.User{Role: models.RoleLead}}, nil
}

func (f *fakeAuthService) RegisterFirstAdmin(_ context.Context, req models.FirstAdminRequest) (*models.AuthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.AuthResponse{Token: "signed", User: models.User{Role: models.RoleAdmin}}, nil
}

func (f *fakeAuthService) CurrentUser(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID, Name: "Current"}, nil
}

type fakeUserService struct {
	lastFilter   models.UserFilter
	lastActor    models.Actor
	lastPassword models.ChangePasswordRequest
}

func (f *fakeUserService) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.User{{ID: agentID}}, &models.Pagination{Page: filter.Page, PageSize: 50, TotalCount: 1}, nil
}

func (f *fakeUserService) Agents(context.Context) ([]models.User, error) {
	return []models.User{{ID: agentID, Role: models.RoleAgent}}, nil
}

func (f *fakeUserService) LeadUsers(context.Context) ([]models.User, error) {
	return []models.User{{ID: leadID, Role: models.RoleLead}}, nil
}

func (f *fakeUserService) Get(_ context.Context, actor models.Actor, id string) (*models.User, error) {
	f.lastActor = actor
	return &models.User{ID: id}, nil
}

func (f *fakeUserService) Create(_ context.Context, actor models.Actor, req models.CreateUserRequest) (*models.User, error) {
	f.lastActor = actor
	return &models.User{ID: "new", Role: req.Role}, nil
}

func (f *fakeUserService) Update(_ context.Context, actor models.Actor, id string, req models.UpdateUserRequest) (*models.User, error) {
	f.lastActor = actor
	return &models.User{ID: id}, nil
}

func (f *fakeUserService) ChangePassword(_ context.Context, actor models.Actor, id string, req models.ChangePasswordRequest) error {
	f.lastActor = actor
	f.lastPassword = req
	return nil
}

func (f *fakeUserService) Delete(_ context.Context, actor models.Actor, id string) error {
	f.lastActor = actor
	return nil
}

type fakeLeadService struct {
	calls      []string
	lastActor  models.Actor
	lastStatus models.LeadStatus
	lastCourse string
	lastAssign models.AssignLeadRequest
	lastBulk   models.BulkAssignRequest
	getErr     error
}

func (f *fakeLeadService) record(name string, actor models.Actor) {
	f.calls = append(f.calls, name)
	f.lastActor = actor
}

func (f *fakeLeadService) Create(_ context.Context, actor models.Actor, req models.CreateLeadRequest) (*models.Lead, error) {
	f.record("Create", actor)
	return &models.Lead{ID: "lead-1", Name: req.Name}, nil
}

func (f *fakeLeadService) List(_ context.Context, actor models.Actor) ([]models.Lead, error) {
	f.record("List", actor)
	return []models.Lead{{ID: "lead-1"}}, nil
}

func (f *fakeLeadService) Get(_ context.Context, actor models.Actor, id string) (*models.Lead, error) {
	f.record("Get", actor)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &models.Lead{ID: id}, nil
}

func (f *fakeLeadService) Update(_ context.Context, actor models.Actor, id string, req models.UpdateLeadRequest) (*models.Lead, error) {
	f.record("Update", actor)
	return &models.Lead{ID: id}, nil
}

func (f *fakeLeadService) Delete(_ context.Context, actor models.Actor, id string) error {
	f.record("Delete", actor)
	return nil
}

func (f *fakeLeadService) Unassigned(context.Context) ([]models.Lead, error) {
	f.calls = append(f.calls, "Unassigned")
	return []models.Lead{}, nil
}

func (f *fakeLeadService) AssignedToMe(_ context.Context, actor models.Actor) ([]models.Lead, error) {
	f.record("AssignedToMe", actor)
	return []models.Lead{}, nil
}

func (f *fakeLeadService) Recent(_ context.Context, actor models.Actor) ([]models.Lead, error) {
	f.record("Recent", actor)
	return []models.Lead{}, nil
}

func (f *fakeLeadService) ByStatus(_ context.Context, actor models.Actor, status models.LeadStatus) ([]models.Lead, error) {
	f.record("ByStatus", actor)
	f.lastStatus = status
	return []models.Lead{}, nil
}

func (f *fakeLeadService) ByCourse(_ context.Context, actor models.Actor, course string) ([]models.Lead, error) {
	f.record("ByCourse", actor)
	f.lastCourse = course
	return []models.Lead{}, nil
}

func (f *fakeLeadService) FollowUpsToday(_ context.Context, actor models.Actor) ([]models.Lead, error) {
	f.record("FollowUpsToday", actor)
	return []models.Lead{}, nil
}

func (f *fakeLeadService) AdminStats(context.Context) (models.LeadStats, error) {
	f.calls = append(f.calls, "AdminStats")
	agents := 2
	return models.LeadStats{TotalLeads: 5, Agents: &agents}, nil
}

func (f *fakeLeadService) AgentStats(_ context.Context, actor models.Actor) (models.LeadStats, error) {
	f.record("AgentStats", actor)
	return models.LeadStats{TotalLeads: 1}, nil
}

func (f *fakeLeadService) Stats(_ context.Context, actor models.Actor) (models.LeadStats, error) {
	f.record("Stats", actor)
	return models.LeadStats{}, nil
}

func (f *fakeLeadService) Assign(_ context.Context, actor models.Actor, id string, req models.AssignLeadRequest) (*models.Lead, error) {
	f.record("Assign", actor)
	f.lastAssign = req
	return &models.Lead{ID: id}, nil
}

func (f *fakeLeadService) BulkAssign(_ context.Context, actor models.Actor, req models.BulkAssignRequest) (*models.BulkAssignResult, error) {
	f.record("BulkAssign", actor)
	f.lastBulk = req
	return &models.BulkAssignResult{Msg: "Leads assigned successfully", Requested: len(req.LeadIDs), Updated: len(req.LeadIDs)}, nil
}

type fakeImporter struct {
	filename    string
	contentType string
	body        string
	err         error
}

func (f *fakeImporter) Import(_ context.Context, _ models.Actor, upload service.Upload) (*models.ImportResult, error) {
	f.filename = upload.Filename
	f.contentType = upload.ContentType
	buf := make([]byte, 256)
	n, _ := upload.Body.Read(buf)
	f.body = string(buf[:n])
	if f.err != nil {
		return nil, f.err
	}
	return &models.ImportResult{Success: true, Count: 1, Errors: []models.ImportRowError{{Row: 2, Error: "Missing required fields"}}}, nil
}

type fakeExporter struct {
	format string
}

func (f *fakeExporter) Leads(_ context.Context, format string) (*service.ExportFile, error) {
	f.format = format
	if format == "xml" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Unsupported export format")
	}
	return &service.ExportFile{Filename: "leads_20240101_000000.csv", ContentType: "text/csv", Data: []byte("Name\nAsha\n")}, nil
}

type fakeInteractionService struct {
	calls     []string
	lastActor models.Actor
	lastID    string
	createReq models.CreateInteractionRequest
}

func (f *fakeInteractionService) record(name string, actor models.Actor) {
	f.calls = append(f.calls, name)
	f.lastActor = actor
}

func (f *fakeInteractionService) Create(_ context.Context, actor models.Actor, req models.CreateInteractionRequest) (*models.Interaction, error) {
	f.record("Create", actor)
	f.createReq = req
	return &models.Interaction{ID: "int-1", Type: req.Type, Remarks: req.Remarks}, nil
}

func (f *fakeInteractionService) List(context.Context) ([]models.Interaction, error) {
	f.calls = append(f.calls, "List")
	return []models.Interaction{}, nil
}

func (f *fakeInteractionService) Mine(_ context.Context, actor models.Actor) ([]models.Interaction, error) {
	f.record("Mine", actor)
	return []models.Interaction{}, nil
}

func (f *fakeInteractionService) RecentMine(_ context.Context, actor models.Actor) ([]models.Interaction, error) {
	f.record("RecentMine", actor)
	return []models.Interaction{}, nil
}

func (f *fakeInteractionService) ForLead(_ context.Context, actor models.Actor, leadID string) ([]models.Interaction, error) {
	f.record("ForLead", actor)
	f.lastID = leadID
	return []models.Interaction{}, nil
}

func (f *fakeInteractionService) AgentStats(_ context.Context, agentID string) (models.InteractionStats, error) {
	f.calls = append(f.calls, "AgentStats")
	f.lastID = agentID
	return models.InteractionStats{TotalInteractions: 3}, nil
}

func (f *fakeInteractionService) OverallStats(context.Context) (models.InteractionStats, error) {
	f.calls = append(f.calls, "OverallStats")
	return models.InteractionStats{}, nil
}

func (f *fakeInteractionService) Get(_ context.Context, actor models.Actor, id string) (*models.Interaction, error) {
	f.record("Get", actor)
	f.lastID = id
	return &models.Interaction{ID: id}, nil
}

func (f *fakeInteractionService) Update(_ context.Context, actor models.Actor, id string, req models.UpdateInteractionRequest) (*models.Interaction, error) {
	f.record("Update", actor)
	f.lastID = id
	return &models.Interaction{ID: id}, nil
}

func (f *fakeInteractionService) Delete(_ context.Context, actor models.Actor, id string) error {
	f.record("Delete", actor)
	f.lastID = id
	return nil
}

type fakeAnalyticsService struct {
	limit int
}

func (f *fakeAnalyticsService) ParseRange(startRaw, endRaw string) (models.DateRange, error) {
	if startRaw == "bad" {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "Invalid startDate")
	}
	return models.DateRange{}, nil
}

func (f *fakeAnalyticsService) Overview(context.Context, models.DateRange) (*models.AnalyticsOverview, error) {
	return &models.AnalyticsOverview{TotalLeads: 10, ConversionRate: 20}, nil
}

func (f *fakeAnalyticsService) Trends(context.Context, models.DateRange) (*models.AnalyticsTrends, error) {
	return &models.AnalyticsTrends{}, nil
}

func (f *fakeAnalyticsService) AgentPerformance(context.Context, models.DateRange) ([]models.AgentPerformance, error) {
	return []models.AgentPerformance{}, nil
}

func (f *fakeAnalyticsService) RecentActivities(_ context.Context, limit int) ([]models.RecentActivity, error) {
	f.limit = limit
	return []models.RecentActivity{}, nil
}

func (f *fakeAnalyticsService) LeadFunnel(context.Context, models.DateRange) ([]models.FunnelStage, error) {
	return []models.FunnelStage{{Stage: "New", Count: 1}}, nil
}
