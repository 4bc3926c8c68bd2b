package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

// metricsMiddleware records method/path/status for every request. The route
// template is used instead of the raw path to keep label cardinality bounded.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.recorder.RecordRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
