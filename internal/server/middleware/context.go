package middleware

import (
	"context"

	"github.com/OFFIS-RIT/graphrag/internal/queue"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/graph"
	"github.com/OFFIS-RIT/graphrag/pkg/query"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

// GraphService is what the handlers need from graph.GraphClient.
type GraphService interface {
	Extract(ctx context.Context, text string, entityTypes []string) (*common.Extraction, error)
	ExtractJSON(ctx context.Context, text string, entityTypes []string) (*graph.JSONExtraction, error)
	Ingest(ctx context.Context, source, text string, metadata map[string]string, entityTypes []string) (*common.Graph, error)
	Augment(ctx context.Context, input string, p query.Params) (*common.Context, error)
	Stats(ctx context.Context) (graph.Stats, error)
}

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// App holds the process wide collaborators. Queue and Key are nil when the
// queue or JWT auth are not configured.
type App struct {
	Graph        GraphService
	Queue        queue.Channel
	Key          keyfunc.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
