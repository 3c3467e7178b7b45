package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-crm/internal/models"
	"github.com/noah-isme/admissions-crm/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	RegisterLeadUser(ctx context.Context, req models.RegisterLeadUserRequest) (*models.AuthResponse, error)
	RegisterFirstAdmin(ctx context.Context, req models.FirstAdminRequest) (*models.AuthResponse, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	user, err := h.service.CurrentUser(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Register godoc
// @Summary Register a staff account
// @Description Self-registration for the agent and lead roles
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// RegisterFirstAdmin godoc
// @Summary Bootstrap the first administrator
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.FirstAdminRequest true "Admin payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/register-first-admin [post]
func (h *AuthHandler) RegisterFirstAdmin(c *gin.Context) {
	var req models.FirstAdminRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.RegisterFirstAdmin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// RegisterLeadUser godoc
// @Summary Register a team lead account
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.RegisterLeadUserRequest true "Lead user payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/register-lead [post]
func (h *AuthHandler) RegisterLeadUser(c *gin.Context) {
	var req models.RegisterLeadUserRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.RegisterLeadUser(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
