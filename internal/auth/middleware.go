package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// StaffAuth enforces bearer staff-session tokens on manager and admin routes.
func StaffAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

// Operator returns the operator name from the request's validated claims,
// falling back to the request-supplied name when the route is unauthenticated.
func Operator(c *gin.Context, fallback string) string {
	if v, ok := c.Get("claims"); ok {
		if claims, ok := v.(Claims); ok && claims.Subject != "" {
			return claims.Subject
		}
	}
	return fallback
}
