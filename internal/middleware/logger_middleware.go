package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
			"bytes":  c.Writer.Size(),
			"dur_ms": time.Since(start).Milliseconds(),
		}
		if uid := c.GetUint(ctxUserID); uid > 0 {
			fields["user_id"] = uid
		}

		entry := log.WithFields(fields)
		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.String())
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		default:
			entry.Info("request")
		}
	}
}
