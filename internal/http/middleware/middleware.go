package middleware

import (
	"time"

	"lead_cadence_backend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RequestTimer reports request latency per matched route.
func RequestTimer(recorder metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if recorder == nil {
			return
		}
		recorder.HTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
