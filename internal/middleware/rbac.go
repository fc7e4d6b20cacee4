package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/accademia-musici/academy-api/internal/models"
	appErrors "github.com/accademia-musici/academy-api/pkg/errors"
	"github.com/accademia-musici/academy-api/pkg/response"
)

// SelfMarker in an RBAC allow list grants access to callers whose own id
// matches the :id path parameter, regardless of role.
const SelfMarker = "SELF"

// RBAC rejects requests whose authenticated user holds none of the
// allowed roles. Must run after Auth.
func RBAC(allowed ...string) gin.HandlerFunc {
	roles := make(map[models.UserRole]struct{}, len(allowed))
	allowSelf := false
	for _, a := range allowed {
		if a == SelfMarker {
			allowSelf = true
			continue
		}
		roles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(ContextUserKey)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		user := v.(*models.User)

		if _, ok := roles[user.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && c.Param("id") == user.ID && user.ID != "" {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is RBAC with typed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
