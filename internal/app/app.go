package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/database"
	"github.com/sahafatech/tawsiya/internal/handlers"
	"github.com/sahafatech/tawsiya/internal/messaging"
	"github.com/sahafatech/tawsiya/internal/middleware"
	"github.com/sahafatech/tawsiya/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	events   *messaging.EventBus
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	events, err := messaging.NewEventBus(cfg, app.logger)
	if err != nil {
		// Analytics are optional; the engine runs without the event bus.
		app.logger.WithError(err).Warn("Event bus unavailable, analytics events disabled")
	}
	app.events = events

	app.services = services.New(db, events, cfg, app.logger)
	app.handlers = handlers.New(app.services, cfg, app.logger)

	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	a.services.Close()

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing event bus")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(&a.config.Security.CORS))

	// Probes and metrics stay outside auth.
	router.GET("/health", a.handlers.Health.Get)
	if a.config.Monitoring.Enabled {
		path := a.config.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	router.POST("/api/v1/auth/token", a.handlers.Auth.Token)

	api := router.Group("/api/v1")
	{
		api.Use(middleware.Auth(a.services.Auth))
		api.Use(middleware.RateLimit(a.services.RateLimit))

		api.GET("/recommendations", a.handlers.Recommendations.Get)
		api.POST("/recommendations/feedback", a.handlers.Feedback.Post)
	}

	a.router = router
}
