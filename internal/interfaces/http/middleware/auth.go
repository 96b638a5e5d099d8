// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
)

// Context keys set by AuthMiddleware
const (
	ContextPrincipalID = "principal_id"
	ContextEmail       = "email"
	ContextRole        = "role"
	ContextClaims      = "token_claims"
)

// AuthMiddleware creates JWT authentication middleware
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	jwtManager := auth.NewJWTManager(cfg)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		tokenString := auth.ExtractTokenFromHeader(authHeader)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(ContextPrincipalID, claims.PrincipalID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

// RequireRole rejects principals whose token carries a different role.
// It must run after AuthMiddleware.
func RequireRole(role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, exists := GetRoleFromContext(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			c.Abort()
			return
		}

		if current != role {
			c.JSON(http.StatusForbidden, gin.H{
				"error": string(role) + " access required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetPrincipalIDFromContext extracts the authenticated principal's ID
func GetPrincipalIDFromContext(c *gin.Context) (uint, bool) {
	id, exists := c.Get(ContextPrincipalID)
	if !exists {
		return 0, false
	}
	principalID, ok := id.(uint)
	return principalID, ok
}

// GetRoleFromContext extracts the authenticated principal's role
func GetRoleFromContext(c *gin.Context) (auth.Role, bool) {
	role, exists := c.Get(ContextRole)
	if !exists {
		return "", false
	}
	r, ok := role.(auth.Role)
	return r, ok
}
