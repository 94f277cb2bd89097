package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/apihost/pkg/logctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger enriched with
// trace_id to gin.Context and the request context.
func RequestLoggerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLogger := base.With("trace_id", c.GetString(logctx.GinTraceIDKey))
		c.Set(logctx.GinLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(logctx.WithLogger(c.Request.Context(), reqLogger))

		c.Next()
	}
}
