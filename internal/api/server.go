package api

import (
	"context"
	"errors"

	"github.com/detectext/detectext/internal/config"
	"github.com/detectext/detectext/internal/detect"
	"github.com/detectext/detectext/internal/email"
	"github.com/detectext/detectext/internal/observability"
	"github.com/detectext/detectext/internal/sink"
	"github.com/detectext/detectext/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	app        *fiber.App
	config     *config.Config
	dispatcher *detect.Dispatcher
	sinkWorker *sink.Worker
	archive    *storage.Service
	metrics    *observability.Metrics
}

// NewServer wires the full service: archive storage, email, sink worker,
// provider adapters, dispatcher, and routes.
func NewServer(cfg *config.Config) (*Server, error) {
	app := fiber.New(fiber.Config{
		ServerHeader:          "DetectText",
		AppName:               "DetectText v1.0.0",
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: !cfg.Debug,
		ErrorHandler:          errorHandler,
	})

	metrics := observability.NewMetrics()

	mailer, err := email.NewService(&cfg.Email)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize email service, notifications disabled")
		mailer = email.NewNoOpService("initialization failed")
	}

	archive, err := storage.NewService(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := archive.EnsureBucket(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to ensure archive bucket")
	}

	sinkWorker := sink.NewWorker(archive, mailer, cfg.Email.ToAddress, cfg.Email.SubjectPrefix, metrics)
	sinkWorker.Start()

	dispatcher := detect.NewDispatcher(
		detect.NewAmazonProvider(&cfg.Providers.Amazon),
		detect.NewGoogleProvider(&cfg.Providers.Google),
		detect.NewMicrosoftProvider(&cfg.Providers.Microsoft),
		sinkWorker,
		cfg.Providers.Timeout,
		metrics,
	)

	s := &Server{
		app:        app,
		config:     cfg,
		dispatcher: dispatcher,
		sinkWorker: sinkWorker,
		archive:    archive,
		metrics:    metrics,
	}
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware registers the global middleware stack
func (s *Server) setupMiddleware() {
	s.app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	s.app.Use(recover.New())
	s.app.Use(compress.New())
	s.app.Use(cors.New())

	if s.config.Debug {
		s.app.Use(logger.New())
	}
}

// setupRoutes registers all routes
func (s *Server) setupRoutes() {
	s.app.Post("/api/detecttext", s.handleDetectText)
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", s.metrics.Handler())

	// Upload portal
	s.app.Static("/", s.config.Server.StaticDir)
}

// handleHealth reports service and archive readiness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":  "ok",
		"archive": s.archive.Name(),
	}

	if err := s.archive.Health(c.Context()); err != nil {
		status["status"] = "degraded"
		status["archive_error"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}

	return c.JSON(status)
}

// Start begins listening for requests
func (s *Server) Start() error {
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown gracefully stops the server, then drains the sink queue so
// in-flight archival and notification work finishes.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	s.sinkWorker.Close()
	return nil
}

// errorHandler renders uncaught errors as plain text, matching the
// error contract of the detection endpoint.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	log.Error().
		Err(err).
		Str("path", c.Path()).
		Int("status", code).
		Msg("Request failed")

	return c.Status(code).SendString("Error: " + err.Error())
}
