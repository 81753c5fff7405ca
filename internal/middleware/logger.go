package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crimecity3k/crimemap-backend-go/internal/metrics"
)

// Logger middleware logs HTTP requests and records request metrics
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RequestsTotal.WithLabelValues(path, strconv.Itoa(statusCode)).Inc()
		metrics.RequestDurationMs.Observe(float64(latency.Milliseconds()))

		if raw != "" {
			path = path + "?" + raw
		}

		slog.Info("request",
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"status", statusCode,
			"latency", latency,
			"errors", c.Errors.String(),
		)
	}
}
