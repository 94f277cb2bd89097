package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/fatflowers/apihost/pkg/logctx"
	"github.com/fatflowers/apihost/pkg/tool"
)

const RequestIDHeader = "X-Request-ID"

// TraceMiddleware adds a trace ID to the request context.
// It reads X-Request-ID if provided by the client; otherwise generates a UUIDv7.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(RequestIDHeader)
		if traceID == "" {
			traceID = tool.NewID()
		}

		c.Set(logctx.GinTraceIDKey, traceID)
		c.Request = c.Request.WithContext(logctx.WithTraceID(c.Request.Context(), traceID))
		c.Writer.Header().Set(RequestIDHeader, traceID)

		c.Next()
	}
}
