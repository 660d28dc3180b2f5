package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/learnlive/backend/pkg/response"
)

// RequireRole aborts with 403 unless the authenticated user has one of the
// given roles. Must run after JWTAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient permissions")
		c.Abort()
	}
}
