package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/graphrag/internal/queue"
	"github.com/OFFIS-RIT/graphrag/internal/server/middleware"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/labstack/echo/v4"
)

type ingestBody struct {
	Source      string            `json:"source" validate:"required"`
	Text        string            `json:"text" validate:"required_without=DocumentKey"`
	DocumentKey string            `json:"document_key"`
	Metadata    map[string]string `json:"metadata"`
	EntityTypes []string          `json:"entity_types"`
	Async       bool              `json:"async"`
}

type ingestResponse struct {
	Message string        `json:"message"`
	Graph   *common.Graph `json:"graph,omitempty"`
}

// IngestHandler stores, extracts and consolidates a document. With async set
// the document is handed to the ingest worker instead; document_key is only
// accepted then.
func IngestHandler(c echo.Context) error {
	data := new(ingestBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if data.Async {
		if app.Queue == nil {
			return c.JSON(http.StatusServiceUnavailable, ingestResponse{Message: "Ingest queue not configured"})
		}
		body, err := json.Marshal(queue.IngestMessage{
			Source:      data.Source,
			Text:        data.Text,
			DocumentKey: data.DocumentKey,
			Metadata:    data.Metadata,
			EntityTypes: data.EntityTypes,
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ingestResponse{Message: "Internal server error"})
		}
		if err := queue.PublishFIFO(ctx, app.Queue, queue.IngestQueue, body); err != nil {
			logger.Error("[Server] Failed to queue document", "source", data.Source, "err", err)
			return c.JSON(http.StatusInternalServerError, ingestResponse{Message: "Internal server error"})
		}
		return c.JSON(http.StatusAccepted, ingestResponse{Message: "Document queued"})
	}

	if strings.TrimSpace(data.Text) == "" {
		return c.JSON(http.StatusBadRequest, ingestResponse{Message: "text is required for synchronous ingest"})
	}

	g, err := app.Graph.Ingest(ctx, data.Source, data.Text, data.Metadata, data.EntityTypes)
	if err != nil {
		logger.Error("[Server] Ingest failed", "source", data.Source, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{Message: "Internal server error"})
	}
	if g == nil {
		return c.JSON(http.StatusOK, ingestResponse{Message: "Nothing extracted"})
	}

	return c.JSON(http.StatusOK, ingestResponse{Message: "Document ingested", Graph: g})
}
