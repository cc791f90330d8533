package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger returns a zap-based request logging middleware. Paths in skip (health probes)
// are logged at debug level only. WebSocket upgrades are logged when the socket closes.
func Logger(logger *zap.Logger, skip ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(skip))
	for _, p := range skip {
		quiet[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if quiet[path] {
			logger.Debug("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}
