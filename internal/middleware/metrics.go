package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uext/extensions-api/internal/service"
)

// Metrics records one HTTP observation per request. Unmatched routes fall
// back to the raw URL path so 404 traffic is still visible.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
