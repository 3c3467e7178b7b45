package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/pkg/response"
)

type interactionService interface {
	Create(ctx context.Context, actor models.Actor, req models.CreateInteractionRequest) (*models.Interaction, error)
	List(ctx context.Context) ([]models.Interaction, error)
	Mine(ctx context.Context, actor models.Actor) ([]models.Interaction, error)
	RecentMine(ctx context.Context, actor models.Actor) ([]models.Interaction, error)
	ForLead(ctx context.Context, actor models.Actor, leadID string) ([]models.Interaction, error)
	AgentStats(ctx context.Context, agentID string) (models.InteractionStats, error)
	OverallStats(ctx context.Context) (models.InteractionStats, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Interaction, error)
	Update(ctx context.Context, actor models.Actor, id string, req models.UpdateInteractionRequest) (*models.Interaction, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// InteractionHandler exposes the interaction log.
type InteractionHandler struct {
	service interactionService
}

// NewInteractionHandler constructs the handler.
func NewInteractionHandler(svc interactionService) *InteractionHandler {
	return &InteractionHandler{service: svc}
}

// Create godoc
// @Summary Log an interaction
// @Description Supplying statusAfter or followUpDate also updates the lead in the same transaction
// @Tags Interactions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param payload body models.CreateInteractionRequest true "Interaction payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /interactions [post]
func (h *InteractionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateInteractionRequest
	if !bindJSON(c, &req) {
		return
	}
	interaction, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, interaction)
}

// List returns every interaction, newest first.
func (h *InteractionHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	h.respond(c, items, err)
}

func (h *InteractionHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.Mine(c.Request.Context(), actor)
	h.respond(c, items, err)
}

// RecentMine returns the caller's five latest interactions.
func (h *InteractionHandler) RecentMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.RecentMine(c.Request.Context(), actor)
	h.respond(c, items, err)
}

// ForLead godoc
// @Summary Interactions for a lead
// @Tags Interactions
// @Produce json
// @Security ApiKeyAuth
// @Param leadId path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Router /interactions/lead/{leadId} [get]
func (h *InteractionHandler) ForLead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ForLead(c.Request.Context(), actor, c.Param("leadId"))
	h.respond(c, items, err)
}

func (h *InteractionHandler) AgentStats(c *gin.Context) {
	stats, err := h.service.AgentStats(c.Request.Context(), c.Param("id"))
	h.respond(c, stats, err)
}

func (h *InteractionHandler) OverallStats(c *gin.Context) {
	stats, err := h.service.OverallStats(c.Request.Context())
	h.respond(c, stats, err)
}

func (h *InteractionHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	h.respond(c, item, err)
}

// Update godoc
// @Summary Update an interaction
// @Tags Interactions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Interaction ID"
// @Param payload body models.UpdateInteractionRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /interactions/{id} [put]
func (h *InteractionHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateInteractionRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	h.respond(c, item, err)
}

// Delete removes an interaction. The lead keeps its current status.
func (h *InteractionHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Interaction removed")
}

func (h *InteractionHandler) respond(c *gin.Context, data interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}
