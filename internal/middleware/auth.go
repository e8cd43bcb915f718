package middleware

import (
	"github.com/gin-gonic/gin"
)

// DevUserID is the identity assumed when no caller is known in development
const DevUserID = "00000000-0000-0000-0000-000000000001"

// DevelopmentAuthMiddleware stands in for IstioAuth outside the mesh. The
// caller identity comes from X-User-* headers, falling back to a fixed
// development user.
func DevelopmentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.GetHeader("X-User-ID")
		}
		if userID == "" {
			userID = DevUserID
		}

		email := c.GetString("user_email")
		if email == "" {
			email = c.GetHeader("X-User-Email")
		}
		if email == "" {
			email = "dev@localhost"
		}

		name := c.GetString("user_name")
		if name == "" {
			name = c.GetHeader("X-User-Name")
		}
		if name == "" {
			name = "Developer"
		}

		// Both casings, the RBAC middleware checks staff_id first
		c.Set("userId", userID)
		c.Set("user_id", userID)
		c.Set("staff_id", userID)
		c.Set("user_email", email)
		c.Set("user_name", name)
		c.Next()
	}
}
