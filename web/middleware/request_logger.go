package middleware

import (
	"strconv"
	"time"

	"clause-agent/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDKey = "request_id"

// RequestLogger tags each request with an ID, logs the outcome, and feeds
// the HTTP counter.
func RequestLogger(logger *zap.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		metrics.CountHTTPRequest(c.FullPath(), strconv.Itoa(status))
		logger.Info("Request handled",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)))
	}
}
