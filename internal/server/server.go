package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/graphrag/internal/backend"
	"github.com/OFFIS-RIT/graphrag/internal/config"
	"github.com/OFFIS-RIT/graphrag/internal/queue"
	mid "github.com/OFFIS-RIT/graphrag/internal/server/middleware"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New returns an echo instance serving app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)
	return e
}

// Init wires the backend and serves until ctx is cancelled.
func Init(ctx context.Context, cfg *config.Config) error {
	b, err := backend.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}
	defer b.Close()

	app := &mid.App{
		Graph:        b.Client,
		MasterAPIKey: cfg.Server.MasterAPIKey,
	}

	if cfg.Server.AuthURL != "" {
		k, err := keyfunc.NewDefault([]string{cfg.Server.AuthURL + "/jwks"})
		if err != nil {
			return fmt.Errorf("failed to load jwks keys: %w", err)
		}
		app.Key = k
	} else if cfg.Server.MasterAPIKey == "" {
		logger.Warn("[Server] Neither AUTH_URL nor MASTER_API_KEY set, all /api requests will be rejected")
	}

	if cfg.Queue.Enabled {
		conn, err := queue.Init(cfg.Queue)
		if err != nil {
			return err
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open channel: %w", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
			return err
		}
		app.Queue = ch
	}

	e := New(app)

	go func() {
		logger.Info("[Server] Starting server", "port", cfg.Server.Port)
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[Server] Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Server] Failed to shutdown server", "err", err)
	}
	return nil
}
