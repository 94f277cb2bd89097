package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/apihost/pkg/logctx"
)

func TestTraceMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())
	var fromCtx, fromGin string
	r.GET("/x", func(c *gin.Context) {
		fromCtx = logctx.TraceID(c.Request.Context())
		fromGin = c.GetString(logctx.GinTraceIDKey)
	})

	t.Run("keeps client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
		require.Equal(t, "req-42", fromCtx)
		require.Equal(t, "req-42", fromGin)
	})

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		id := w.Header().Get(RequestIDHeader)
		require.Len(t, id, 36)
		require.Equal(t, id, fromCtx)
	})
}

func TestAccessLog_UsesRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(base), AccessLogMiddleware(base))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
	req.Header.Set(RequestIDHeader, "trace-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("http_access").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "trace-1", fields["trace_id"])
	require.Equal(t, "/items/:id", fields["path"])
	require.EqualValues(t, http.StatusAccepted, fields["status"])
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	const origin = "https://app.example.org"

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
		allowed := strings.Split(w.Header().Get("Access-Control-Allow-Headers"), ",")
		require.ElementsMatch(t, []string{"Authorization", "Content-Type", http.CanonicalHeaderKey(RequestIDHeader)}, allowed)
	})

	t.Run("simple request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, http.CanonicalHeaderKey(RequestIDHeader), w.Header().Get("Access-Control-Expose-Headers"))
	})

	t.Run("same origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
