package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uniport/uap-leave-api/internal/service"
)

// Metrics records the duration and status of every handled request, labeled
// by the route template so path parameters do not explode the cardinality.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		defer func() {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		}()
		c.Next()
	}
}
