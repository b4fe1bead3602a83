package server

import (
	"context"
	"time"

	"mailhook/internal/config"
	"mailhook/internal/dispatch"
	"mailhook/internal/handlers"
	"mailhook/internal/scheduler"
	"mailhook/internal/threading"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Server represents the application server
type Server struct {
	echo   *echo.Echo
	db     *sqlx.DB
	config *config.Config
	logger zerolog.Logger

	endpoints handlers.EndpointSource
	dispatch  *dispatch.Dispatcher
	client    *dispatch.Client
	forwarder *dispatch.Forwarder
	scheduler *scheduler.Service
	processor *scheduler.Processor
	threads   *threading.Engine
}

// New creates a new server instance
func New(cfg *config.Config, db *sqlx.DB, logger zerolog.Logger,
	endpoints handlers.EndpointSource,
	client *dispatch.Client, dispatcher *dispatch.Dispatcher, forwarder *dispatch.Forwarder,
	schedulerSvc *scheduler.Service, processor *scheduler.Processor,
	threads *threading.Engine,
) *Server {
	return &Server{
		config:    cfg,
		db:        db,
		logger:    logger,
		endpoints: endpoints,
		dispatch:  dispatcher,
		client:    client,
		forwarder: forwarder,
		scheduler: schedulerSvc,
		processor: processor,
		threads:   threads,
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			s.logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	// Middleware
	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Hide Echo banner
	s.echo.HideBanner = true

	// Setup routes
	s.setupRoutes()
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	// API group with /api prefix
	api := s.echo.Group("/api")

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints (keep at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.db))

	// API endpoints under /api prefix
	api.GET("/", handlers.RootHandler(s.config.Version))
	api.POST("/inbound", handlers.InboundHandler(s.endpoints, s.dispatch))
	api.POST("/threads/preview", handlers.ThreadPreviewHandler(s.threads))
	api.POST("/endpoints/:id/test", handlers.TestEndpointHandler(s.endpoints, s.client, s.forwarder))

	api.POST("/scheduled-sends", handlers.CreateScheduledSendHandler(s.scheduler))
	api.GET("/scheduled-sends", handlers.ListScheduledSendsHandler(s.scheduler))
	api.GET("/scheduled-sends/:id", handlers.GetScheduledSendHandler(s.scheduler))
	api.DELETE("/scheduled-sends/:id", handlers.CancelScheduledSendHandler(s.scheduler))

	// Cron entrypoint for deployments that drain due sends externally
	s.echo.POST("/internal/process-due", handlers.ProcessDueHandler(s.processor))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
