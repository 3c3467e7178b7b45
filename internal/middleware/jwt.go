package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-crm/internal/models"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
	"github.com/noah-isme/admissions-crm/pkg/logger"
	"github.com/noah-isme/admissions-crm/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenHeader is the default header carrying the access token.
const TokenHeader = "x-auth-token"

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token in header (x-auth-token when empty) or an
// Authorization bearer header.
func JWT(validator TokenValidator, header string) gin.HandlerFunc {
	if header == "" {
		header = TokenHeader
	}
	return func(c *gin.Context) {
		token := tokenFromRequest(c, header)
		if token == "" {
			response.Error(c, appErrors.ErrNoToken)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(logger.UserIDKey, claims.UserID)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context, header string) string {
	if token := strings.TrimSpace(c.GetHeader(header)); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
