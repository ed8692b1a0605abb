package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one structured access log line per request. Errors
// attached with c.Error are logged at Error level.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if p, ok := PrincipalFrom(c); ok {
			attrs = append(attrs, "user_id", p.UserID)
		}

		ctx := c.Request.Context()
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
			logger.ErrorContext(ctx, "request failed", attrs...)
			return
		}
		logger.InfoContext(ctx, "request", attrs...)
	}
}
