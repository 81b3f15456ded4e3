package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	header     = "X-Request-ID"
	contextKey = "request_id"
)

// Middleware tags every request with an ID, reusing the caller's X-Request-ID
// when one is supplied so traces can be correlated across services.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(header, id)
		c.Next()
	}
}

// Value returns the request ID for the current request, empty when the
// middleware did not run.
func Value(c *gin.Context) string {
	id, _ := c.Get(contextKey)
	s, _ := id.(string)
	return s
}
