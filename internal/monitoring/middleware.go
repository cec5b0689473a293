package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware creates Gin middleware for request monitoring
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.IncrementRequest()

		ip := c.ClientIP()
		userAgent := c.GetHeader("User-Agent")
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(statusCode)

		if statusCode >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(method, path, ip, userAgent, statusCode, duration)

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				logger.APIErrorLogger(err.Err, method, path, ip, statusCode)
			}
		}

		if duration > 5*time.Second {
			logger.Warn("Slow request",
				"method", method,
				"path", path,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}
}
