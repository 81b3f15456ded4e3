package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/uniport/uap-leave-api/internal/models"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
	"github.com/uniport/uap-leave-api/pkg/response"
)

// SelfRole is a pseudo-role accepted by RBAC: it admits the caller when the
// :id route parameter is their own user id, so users can reach their own
// resources without holding an elevated role.
const SelfRole = "SELF"

// RBAC restricts a route to the listed roles (and optionally SelfRole).
// The allow set is resolved once at route registration.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	roles := make(map[models.UserRole]struct{}, len(allowed))
	for _, entry := range allowed {
		if entry == SelfRole {
			allowSelf = true
			continue
		}
		roles[models.UserRole(entry)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && c.Param("id") == claims.UserID && claims.UserID != "" {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles restricts a route to the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, role := range roles {
		allowed[i] = string(role)
	}
	return RBAC(allowed...)
}
