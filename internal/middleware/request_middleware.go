package middleware

import (
	"time"

	"github.com/farellandr/showticket/internal/log"
	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

const CorrelationIDHeader = "Correlation-ID"

// CorrelationID tags the request context with a correlation id and a logger
// carrying it. The id travels on to published notifications.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = "gen_" + shortuuid.New()
		}

		ctx := log.ContextWithCorrelationID(c.Request.Context(), id)
		ctx = log.ToContext(ctx, logrus.WithField("correlation_id", id))
		c.Request = c.Request.WithContext(ctx)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		entry := log.FromContext(c.Request.Context()).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(started).String(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}
