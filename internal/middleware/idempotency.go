package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// IdempotencyHeader carries the client's retry key.
const IdempotencyHeader = "Idempotency-Key"

const (
	replayTTL   = 24 * time.Hour
	claimTTL    = 30 * time.Second
	pendingMark = "pending"
)

// storedReply is the response kept for replay.
type storedReply struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// recordingWriter copies everything written to the client.
type recordingWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency makes mutating requests that carry an Idempotency-Key safe to
// retry. The first request claims the key; a concurrent duplicate gets 409 and
// a later duplicate gets the stored response. Keys are scoped to the principal,
// so the middleware must run after Auth. Redis failures degrade to normal processing.
func Idempotency(client redis.Cmdable, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if client == nil || key == "" || !mutating(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		slot := replaySlot(c, key)

		claimed, err := client.SetNX(ctx, slot, pendingMark, claimTTL).Result()
		if err != nil {
			logger.WarnContext(ctx, "idempotency claim failed", "error", err)
			c.Next()
			return
		}
		if !claimed {
			replay(c, client, slot, logger)
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// The handler has finished; store even if the client went away.
		storeCtx := context.WithoutCancel(ctx)
		status := w.Status()
		if status >= http.StatusInternalServerError {
			// Server errors are retryable, so free the key.
			if err := client.Del(storeCtx, slot).Err(); err != nil {
				logger.WarnContext(ctx, "idempotency release failed", "error", err)
			}
			return
		}

		data, err := json.Marshal(storedReply{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.buf.Bytes(),
		})
		if err == nil {
			err = client.Set(storeCtx, slot, data, replayTTL).Err()
		}
		if err != nil {
			logger.WarnContext(ctx, "idempotency store failed", "error", err)
		}
	}
}

func replay(c *gin.Context, client redis.Cmdable, slot string, logger *slog.Logger) {
	ctx := c.Request.Context()

	raw, err := client.Get(ctx, slot).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WarnContext(ctx, "idempotency lookup failed", "error", err)
		}
		c.Next()
		return
	}
	if string(raw) == pendingMark {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is in progress"})
		return
	}

	var reply storedReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		logger.WarnContext(ctx, "idempotency entry unreadable", "error", err)
		c.Next()
		return
	}

	contentType := reply.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(reply.Status, contentType, reply.Body)
	c.Abort()
}

func replaySlot(c *gin.Context, key string) string {
	owner := "anonymous"
	if p, ok := PrincipalFrom(c); ok {
		owner = p.UserID
	}
	return "idempotency:" + owner + ":" + c.FullPath() + ":" + key
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
