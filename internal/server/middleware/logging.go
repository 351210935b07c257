package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dcv-session-gateway/internal/logger"
)

// Logging logs one line per request with its outcome. Query strings are not logged because the
// gateway may send credentials in them.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		reqLog := logger.WithRequestID(log, requestID(c))
		if c.Writer.Status() >= 500 {
			reqLog.Error("request completed", fields...)
			return
		}
		reqLog.Info("request completed", fields...)
	}
}
