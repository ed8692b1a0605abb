package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes tags the New Relic transaction started by nrgin with the
// authenticated principal and reports handler errors. It must run after Auth.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if p, ok := PrincipalFrom(c); ok {
			txn.AddAttribute("user_id", p.UserID)
			txn.AddAttribute("role", string(p.Role))
		}

		c.Next()

		// Record error if present.
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
