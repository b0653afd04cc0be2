package middleware

import (
	"time"

	"portfolio-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			logger.StringField("method", c.Request.Method),
			logger.StringField("path", c.Request.URL.Path),
			logger.IntField("status", status),
			zap.Duration("latency", time.Since(start)),
			logger.StringField("client_ip", c.ClientIP()),
		}
		if userID := UserID(c); userID != 0 {
			fields = append(fields, logger.UintField("user_id", userID))
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
