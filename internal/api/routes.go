// Package api exposes the correlation pipeline over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gocorr/internal/metrics"
)

// NewRouter wires the correlation routes, health check and metrics endpoint
func NewRouter(h *CorrelationHandler, m *metrics.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/correlations/top", h.RunTop)
		v1.POST("/correlations/full", h.RunFull)
		v1.GET("/runs/:runId/timesteps", h.ListTimesteps)
		v1.GET("/runs/:runId/timesteps/:timestep", h.GetStep)
	}
	return router
}
