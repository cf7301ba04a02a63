package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

// Logger routes gin's access log through the structured logger, tiering the
// level on the response status.
func Logger(log logger.Interface) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		fields := []any{
			"method", p.Method,
			"path", p.Path,
			"status", p.StatusCode,
			"latency", p.Latency,
			"client_ip", p.ClientIP,
			"user_agent", p.Request.UserAgent(),
		}
		if p.ErrorMessage != "" {
			fields = append(fields, "error", p.ErrorMessage)
		}

		switch {
		case p.StatusCode >= 500:
			log.Errorw("request", fields...)
		case p.StatusCode >= 400:
			log.Warnw("request", fields...)
		default:
			log.Debugw("request", fields...)
		}
		return ""
	})
}
