package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dealbridge/backend/internal/infrastructure/auth"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	JWTSubjectKey = "jwt_subject"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// JWTAuth guards the admin API. An empty secret leaves the surface open,
// which is only acceptable for local development; the config loader warns
// about it at startup.
func JWTAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, "authorization header must use the Bearer scheme")
			return
		}

		claims, err := jwtService.Validate(strings.TrimPrefix(header, BearerPrefix))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTSubjectKey, claims.Subject)
		c.Next()
	}
}

// GetJWTSubject returns the authenticated subject, empty when unauthenticated.
func GetJWTSubject(c *gin.Context) string {
	return c.GetString(JWTSubjectKey)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
