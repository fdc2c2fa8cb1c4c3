package server

import (
	"github.com/OFFIS-RIT/graphrag/internal/server/middleware"
	"github.com/OFFIS-RIT/graphrag/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Extraction routes
	apiRoutes.POST("/extract", routes.ExtractHandler, middleware.RequirePermission(middleware.PermissionWrite))
	apiRoutes.POST("/extract/json", routes.ExtractJSONHandler, middleware.RequirePermission(middleware.PermissionWrite))
	apiRoutes.POST("/ingest", routes.IngestHandler, middleware.RequirePermission(middleware.PermissionIngest))

	// Retrieval routes
	apiRoutes.POST("/augment", routes.AugmentHandler, middleware.RequirePermission(middleware.PermissionRead))
	apiRoutes.GET("/stats", routes.GetStatsHandler, middleware.RequirePermission(middleware.PermissionRead))
}
