package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graphrag/internal/server/middleware"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetStatsHandler reports node, edge and chunk counts.
func GetStatsHandler(c echo.Context) error {
	svc := c.(*middleware.AppContext).App.Graph
	stats, err := svc.Stats(c.Request().Context())
	if err != nil {
		logger.Error("[Server] Stats failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return c.JSON(http.StatusOK, stats)
}
