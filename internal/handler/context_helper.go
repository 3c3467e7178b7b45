package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-crm/internal/middleware"
	"github.com/noah-isme/admissions-crm/internal/models"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
	"github.com/noah-isme/admissions-crm/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext builds the service actor for the request, writing a 401 when no claims are
// present.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrNoToken)
		return models.Actor{}, false
	}
	return models.Actor{
		ID:        claims.UserID,
		Role:      claims.Role,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}, true
}

// bindJSON decodes the request body, writing a 400 on malformed input.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid request body"))
		return false
	}
	return true
}
