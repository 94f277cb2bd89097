package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/apihost/pkg/logctx"
	"github.com/fatflowers/apihost/pkg/response"
)

const (
	HealthStatusOK           = "ok"
	HealthStatusShuttingDown = "shutting_down"
)

// ShutdownState reports whether the process has started draining.
type ShutdownState interface {
	ShuttingDown() bool
}

// HealthStatus is the payload of the health endpoint.
type HealthStatus struct {
	Status string `json:"status" example:"ok"`
}

// RespHealth is the documented envelope for the health endpoint.
type RespHealth = response.APIResponse[HealthStatus]

// @Summary      Health check
// @Description  Returns 200 while serving and 503 once a termination trigger started the shutdown drain. The "api" segment follows http.api_prefix.
// @Tags         System
// @Produce      json
// @Success      200  {object}  handlers.RespHealth
// @Failure      503  {object}  handlers.RespHealth
// @Router       /api/v1/healthz [get]
func Healthz(state ShutdownState, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if state != nil && state.ShuttingDown() {
			logctx.FromGin(c, log).Infow("health probe during shutdown")
			c.JSON(http.StatusServiceUnavailable, response.ErrorT(response.APIResponseCodeUnavailable, HealthStatus{Status: HealthStatusShuttingDown}))
			return
		}
		c.JSON(http.StatusOK, response.OKT(HealthStatus{Status: HealthStatusOK}))
	}
}

func RegisterHealthRoutes(r gin.IRouter, state ShutdownState, log *zap.SugaredLogger) {
	r.GET("/healthz", Healthz(state, log))
}
