package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cabride/internal/auth"
)

const principalKey = "principal"

// TokenVerifier verifies a bearer token.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Auth rejects requests without a valid bearer token and stores the principal
// on the gin and request contexts.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		p, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// RequireDriver allows only principals with the driver flag.
func RequireDriver() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.IsDriver {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "driver access required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin allows only principals carrying the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Auth.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}
