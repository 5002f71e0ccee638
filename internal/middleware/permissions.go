// internal/middleware/permissions.go

package middleware

import (
	"net/http"

	"prosignum/internal/models"

	"github.com/gin-gonic/gin"
)

// RequireRole gates an endpoint behind a minimum role. Must run after
// AuthMiddleware, which sets "role" on the context.
func RequireRole(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr, ok := contextRole(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "User not authenticated",
			})
			c.Abort()
			return
		}

		userRole := models.UserRole(roleStr)
		requiredRole := models.UserRole(minRole)

		if !userRole.IsValid() || !requiredRole.IsValid() {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Invalid role",
			})
			c.Abort()
			return
		}

		if !userRole.IsHigherOrEqual(requiredRole) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":         "Insufficient permissions",
				"required_role": minRole,
				"user_role":     roleStr,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAnyRole gates an endpoint open to several exact roles.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr, ok := contextRole(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "User not authenticated",
			})
			c.Abort()
			return
		}

		userRole := models.UserRole(roleStr)

		hasRole := false
		for _, allowed := range roles {
			if userRole == models.UserRole(allowed) {
				hasRole = true
				break
			}
		}

		if !hasRole {
			c.JSON(http.StatusForbidden, gin.H{
				"error":          "Insufficient permissions",
				"required_roles": roles,
				"user_role":      roleStr,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func contextRole(c *gin.Context) (string, bool) {
	roleInterface, exists := c.Get("role")
	if !exists {
		return "", false
	}

	roleStr, ok := roleInterface.(string)
	if !ok || roleStr == "" {
		return "", false
	}

	return roleStr, true
}
