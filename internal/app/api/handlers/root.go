package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/apihost/pkg/response"
)

// AppInfo identifies the running service.
type AppInfo struct {
	Name    string `json:"name" example:"apihost"`
	Version string `json:"version" example:"1.0"`
}

// RespAppInfo is the documented envelope for the root endpoint.
type RespAppInfo = response.APIResponse[AppInfo]

// @Summary      Service info
// @Description  Service name and version; served outside the API prefix
// @Tags         System
// @Produce      json
// @Success      200  {object}  handlers.RespAppInfo
// @Router       / [get]
func Root(info AppInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

func RegisterRootRoutes(r gin.IRouter, info AppInfo) {
	r.GET("/", Root(info))
}
