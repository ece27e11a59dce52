package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farewatch/internal/logger"
	"farewatch/pkg/health"
	"farewatch/pkg/middleware"
	"farewatch/pkg/tracing"
)

type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// NewRouter builds the HTTP surface: health, metrics and every registrar's
// routes behind the shared middleware chain.
func NewRouter(serviceName string, checks *health.CheckerRegistry, log logger.Logger, registrars ...RouteRegistrar) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(),
		tracing.GinMiddleware(serviceName),
		middleware.LoggerMiddleware(log),
		middleware.RecoveryMiddleware(log),
	)

	router.GET("/health", func(c *gin.Context) {
		h := checks.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for _, r := range registrars {
		r.RegisterRoutes(router)
	}

	return router
}
