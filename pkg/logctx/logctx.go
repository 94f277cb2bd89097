package logctx

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceIDKey
)

// Gin context keys shared by the middleware chain.
const (
	GinLoggerKey  = "logger"
	GinTraceIDKey = "traceID"
)

func WithLogger(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tid, _ := ctx.Value(traceIDKey).(string)
	return tid
}

// FromGin returns a request-scoped logger from gin.Context if present,
// otherwise returns the provided base logger.
func FromGin(c *gin.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return base
	}
	if l, ok := c.Get(GinLoggerKey); ok {
		if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
			return lg
		}
	}
	if c.Request == nil {
		return base
	}
	return FromCtx(c.Request.Context(), base)
}

// FromCtx returns the logger stored in ctx, or base enriched with the trace id
// when only that is known.
func FromCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if ctx == nil {
		return base
	}
	if lg, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok && lg != nil {
		return lg
	}
	if tid := TraceID(ctx); tid != "" {
		return base.With("trace_id", tid)
	}
	return base
}
