package checks

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers check routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api")
	g.GET("/checks", h.ListChecks)
	g.POST("/runs", h.Trigger)
	g.GET("/runs/latest", h.Latest)
	g.GET("/runs/latest/:check", h.LatestCheck)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
