package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graphrag/internal/server/middleware"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/labstack/echo/v4"
)

type extractBody struct {
	Text        string   `json:"text" validate:"required"`
	EntityTypes []string `json:"entity_types"`
}

type extractedEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	common.Edge
}

type extractResponse struct {
	Message  string          `json:"message,omitempty"`
	Nodes    []common.Node   `json:"nodes"`
	Edges    []extractedEdge `json:"edges"`
	Keywords []string        `json:"keywords"`
}

func toExtractResponse(x *common.Extraction) extractResponse {
	res := extractResponse{
		Nodes:    []common.Node{},
		Edges:    []extractedEdge{},
		Keywords: []string{},
	}
	if x == nil {
		res.Message = "Nothing extracted"
		return res
	}
	for _, name := range x.NodeNames() {
		res.Nodes = append(res.Nodes, x.Nodes[name]...)
	}
	for _, key := range x.EdgeKeys() {
		for _, e := range x.Edges[key] {
			res.Edges = append(res.Edges, extractedEdge{Source: key.Source, Target: key.Target, Edge: e})
		}
	}
	if x.Keywords != nil {
		res.Keywords = x.Keywords
	}
	return res
}

// ExtractHandler extracts entities and relationships from the posted text
// without touching the stores.
func ExtractHandler(c echo.Context) error {
	data := new(extractBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, extractResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, extractResponse{Message: "Invalid request body"})
	}

	svc := c.(*middleware.AppContext).App.Graph
	x, err := svc.Extract(c.Request().Context(), data.Text, data.EntityTypes)
	if err != nil {
		logger.Error("[Server] Extract failed", "err", err)
		return c.JSON(http.StatusInternalServerError, extractResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, toExtractResponse(x))
}

// ExtractJSONHandler runs the structured JSON extraction.
func ExtractJSONHandler(c echo.Context) error {
	data := new(extractBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	svc := c.(*middleware.AppContext).App.Graph
	res, err := svc.ExtractJSON(c.Request().Context(), data.Text, data.EntityTypes)
	if err != nil {
		logger.Error("[Server] JSON extract failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	if res == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"message":       "Nothing extracted",
			"entities":      []any{},
			"relationships": []any{},
			"keywords":      []string{},
		})
	}

	return c.JSON(http.StatusOK, res)
}
