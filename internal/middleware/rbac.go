package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-crm/internal/models"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
	"github.com/noah-isme/admissions-crm/pkg/response"
)

// Self allows the caller through when the :id route parameter is their own id.
const Self = "SELF"

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...string) gin.HandlerFunc {
	return rbac(appErrors.ErrForbidden, allowed...)
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// AdminOnly restricts a route to administrators.
func AdminOnly() gin.HandlerFunc {
	return rbac(appErrors.ErrAdminOnly, string(models.RoleAdmin))
}

func rbac(denied *appErrors.Error, allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == Self {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		claims, ok := claimsValue.(*models.JWTClaims)
		if !exists || !ok {
			response.Error(c, appErrors.ErrNoToken)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, denied)
		c.Abort()
	}
}
