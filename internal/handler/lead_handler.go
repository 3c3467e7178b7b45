package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/internal/service"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
	"github.com/noah-isme/admissions-crm/pkg/response"
)

type leadService interface {
	Create(ctx context.Context, actor models.Actor, req models.CreateLeadRequest) (*models.Lead, error)
	List(ctx context.Context, actor models.Actor) ([]models.Lead, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Lead, error)
	Update(ctx context.Context, actor models.Actor, id string, req models.UpdateLeadRequest) (*models.Lead, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Unassigned(ctx context.Context) ([]models.Lead, error)
	AssignedToMe(ctx context.Context, actor models.Actor) ([]models.Lead, error)
	Recent(ctx context.Context, actor models.Actor) ([]models.Lead, error)
	ByStatus(ctx context.Context, actor models.Actor, status models.LeadStatus) ([]models.Lead, error)
	ByCourse(ctx context.Context, actor models.Actor, course string) ([]models.Lead, error)
	FollowUpsToday(ctx context.Context, actor models.Actor) ([]models.Lead, error)
	AdminStats(ctx context.Context) (models.LeadStats, error)
	AgentStats(ctx context.Context, actor models.Actor) (models.LeadStats, error)
	Stats(ctx context.Context, actor models.Actor) (models.LeadStats, error)
	Assign(ctx context.Context, actor models.Actor, leadID string, req models.AssignLeadRequest) (*models.Lead, error)
	BulkAssign(ctx context.Context, actor models.Actor, req models.BulkAssignRequest) (*models.BulkAssignResult, error)
}

type leadImporter interface {
	Import(ctx context.Context, actor models.Actor, upload service.Upload) (*models.ImportResult, error)
}

type leadExporter interface {
	Leads(ctx context.Context, format string) (*service.ExportFile, error)
}

// LeadHandler exposes lead management, assignment, import and export endpoints.
type LeadHandler struct {
	leads    leadService
	importer leadImporter
	exporter leadExporter
}

// NewLeadHandler constructs the lead handler.
func NewLeadHandler(leads leadService, importer leadImporter, exporter leadExporter) *LeadHandler {
	return &LeadHandler{leads: leads, importer: importer, exporter: exporter}
}

// Create godoc
// @Summary Create lead
// @Description Agents become the assignee of leads they create
// @Tags Leads
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param payload body models.CreateLeadRequest true "Lead payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateLeadRequest
	if !bindJSON(c, &req) {
		return
	}
	lead, err := h.leads.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lead)
}

// List godoc
// @Summary List leads
// @Description Admins see every lead, other roles see leads assigned to them
// @Tags Leads
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} response.Envelope
// @Router /leads [get]
func (h *LeadHandler) List(c *gin.Context) {
	h.list(c, func(ctx context.Context, actor models.Actor) ([]models.Lead, error) {
		return h.leads.List(ctx, actor)
	})
}

// Get godoc
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id} [get]
func (h *LeadHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	lead, err := h.leads.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Update godoc
// @Summary Update lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Lead ID"
// @Param payload body models.UpdateLeadRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /leads/{id} [put]
func (h *LeadHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateLeadRequest
	if !bindJSON(c, &req) {
		return
	}
	lead, err := h.leads.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Delete removes a lead.
func (h *LeadHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.leads.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Lead removed")
}

func (h *LeadHandler) Unassigned(c *gin.Context) {
	h.list(c, func(ctx context.Context, _ models.Actor) ([]models.Lead, error) {
		return h.leads.Unassigned(ctx)
	})
}

func (h *LeadHandler) AssignedToMe(c *gin.Context) {
	h.list(c, h.leads.AssignedToMe)
}

func (h *LeadHandler) Recent(c *gin.Context) {
	h.list(c, h.leads.Recent)
}

func (h *LeadHandler) ByStatus(c *gin.Context) {
	status := models.LeadStatus(c.Param("status"))
	h.list(c, func(ctx context.Context, actor models.Actor) ([]models.Lead, error) {
		return h.leads.ByStatus(ctx, actor, status)
	})
}

func (h *LeadHandler) ByCourse(c *gin.Context) {
	course := c.Param("course")
	h.list(c, func(ctx context.Context, actor models.Actor) ([]models.Lead, error) {
		return h.leads.ByCourse(ctx, actor, course)
	})
}

func (h *LeadHandler) FollowUpsToday(c *gin.Context) {
	h.list(c, h.leads.FollowUpsToday)
}

func (h *LeadHandler) list(c *gin.Context, fetch func(context.Context, models.Actor) ([]models.Lead, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	leads, err := fetch(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leads, nil)
}

// AdminStats godoc
// @Summary Lead counters across the whole office
// @Tags Leads
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} response.Envelope
// @Router /leads/admin-stats [get]
func (h *LeadHandler) AdminStats(c *gin.Context) {
	stats, err := h.leads.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func (h *LeadHandler) AgentStats(c *gin.Context) {
	h.stats(c, h.leads.AgentStats)
}

func (h *LeadHandler) Stats(c *gin.Context) {
	h.stats(c, h.leads.Stats)
}

func (h *LeadHandler) stats(c *gin.Context, fetch func(context.Context, models.Actor) (models.LeadStats, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	stats, err := fetch(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Assign godoc
// @Summary Assign a lead to an agent
// @Description Reads assignedTo (agentId accepted as an alias). An empty value unassigns the lead
// @Tags Assignment
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Lead ID"
// @Param payload body models.AssignLeadRequest true "Target agent"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leads/assign/{id} [put]
func (h *LeadHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.AssignLeadRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	lead, err := h.leads.Assign(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// BulkAssign godoc
// @Summary Assign many leads to a team lead
// @Tags Assignment
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param payload body models.BulkAssignRequest true "Target and leads"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/assign-to-lead [post]
func (h *LeadHandler) BulkAssign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.BulkAssignRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.leads.BulkAssign(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Upload godoc
// @Summary Import leads from CSV
// @Description Rows are validated independently; rejected rows are reported with their row number
// @Tags Leads
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leads/upload [post]
func (h *LeadHandler) Upload(c *gin.Context) {
	if h.importer == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "import service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "No file uploaded"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.importer.Import(c.Request.Context(), actor, service.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Download the lead list
// @Tags Leads
// @Produce text/csv
// @Produce application/pdf
// @Security ApiKeyAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /leads/export [get]
func (h *LeadHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	file, err := h.exporter.Leads(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
