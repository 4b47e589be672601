package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ECGOPS/OPSOMS-sub004/internal/service"
)

func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set("TraceID", traceID)
		c.Request = c.Request.WithContext(service.WithTraceID(c.Request.Context(), traceID))
		c.Writer.Header().Set("X-Trace-ID", traceID)
		c.Next()
	}
}
