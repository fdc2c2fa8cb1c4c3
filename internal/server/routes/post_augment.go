package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/graphrag/internal/server/middleware"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/query"

	"github.com/labstack/echo/v4"
)

type augmentBody struct {
	Input string `json:"input" validate:"required"`
	query.Params
}

type augmentResponse struct {
	Message string          `json:"message,omitempty"`
	Context *common.Context `json:"context"`
}

// AugmentHandler builds the retrieval context for a query. Missing fields
// fall back to query.DefaultParams.
func AugmentHandler(c echo.Context) error {
	data := &augmentBody{Params: query.DefaultParams()}
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, augmentResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, augmentResponse{Message: "Invalid request body"})
	}

	svc := c.(*middleware.AppContext).App.Graph
	qctx, err := svc.Augment(c.Request().Context(), data.Input, data.Params)
	if errors.Is(err, query.ErrEmptyKeywords) || errors.Is(err, query.ErrUnknownMode) {
		return c.JSON(http.StatusBadRequest, augmentResponse{Message: err.Error()})
	}
	if err != nil {
		logger.Error("[Server] Augment failed", "mode", data.Mode, "err", err)
		return c.JSON(http.StatusInternalServerError, augmentResponse{Message: "Internal server error"})
	}
	if qctx == nil {
		return c.JSON(http.StatusOK, augmentResponse{Message: "No context found"})
	}

	return c.JSON(http.StatusOK, augmentResponse{Context: qctx})
}
