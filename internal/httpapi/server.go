// Package httpapi is the assistant's HTTP surface: prompt rendering,
// dashboard insights, cache invalidation, and health detail, scoped to
// the tenant resolved by the auth middleware.
package httpapi

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ServerConfig holds configuration for the assistant API server.
type ServerConfig struct {
	ListenAddr  string
	Auth        AuthConfig
	CORSOrigins string
}

// Server is the assistant API Fiber application.
type Server struct {
	app    *fiber.App
	config ServerConfig
	logger zerolog.Logger
}

// NewServer creates and configures the assistant API server.
func NewServer(cfg ServerConfig, handlers *Handlers, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		config: cfg,
		logger: logger.With().Str("component", "httpapi.server").Logger(),
	}

	s.setupMiddleware(cfg, logger)
	s.setupRoutes(handlers)
	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	s.app.Use(NewAuthMiddleware(cfg.Auth, logger))

	// Audit middleware (log every request)
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" {
			return c.Next()
		}
		orgID, userID := tenant(c)
		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("org_id", orgID).
			Str("user_id", userID).
			Str("request_id", c.Locals("request_id").(string)).
			Msg("assistant api request")
		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers) {
	// Probe endpoint (no auth required — handled in auth middleware)
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := s.app.Group("/api/v1")

	v1.Post("/workspaces/:id/prompt", h.WorkspacePrompt)
	v1.Get("/workspaces/:id/context", h.WorkspaceContext)
	v1.Get("/workspaces/:id/insights", h.WorkspaceInsights)
	v1.Post("/workspaces/:id/invalidate", h.InvalidateWorkspace)

	v1.Post("/assistant/prompt", h.AssistantPrompt)
	v1.Get("/organization/insights", h.OrganizationInsights)

	v1.Get("/health", h.HealthDetail)
}

// Start begins listening. Blocks until Shutdown or a fatal error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("assistant API server starting")
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}
		logger.Error().Err(err).
			Str("path", c.Path()).
			Int("status", code).
			Msg("request failed")
		return problemResponse(c, code, "internal_error", "Internal Server Error", err.Error())
	}
}
