package mgmt

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"
)

// ServerConfig configures the management API server.
type ServerConfig struct {
	ListenAddr string
	Auth       AuthConfig
}

// Server is the management API for collaborators: session ingest, metric
// ingest, feedback, backlog reads and the approval workflow.
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger
}

// NewServer builds the fiber app and registers all routes.
func NewServer(cfg ServerConfig, h *Handlers, promHandler http.Handler, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "insight-mgmt",
	})

	app.Use(NewAuthMiddleware(cfg.Auth, logger))

	app.Get("/healthz", h.Liveness)
	app.Get("/readyz", h.Readiness)
	if promHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promHandler))
	}

	v1 := app.Group("/api/v1")
	v1.Post("/sessions", h.IngestSession)
	v1.Post("/metrics", h.AppendMetric)
	v1.Post("/feedback", h.RecordFeedback)
	v1.Get("/knowledge/:signature", h.GetKnowledge)
	v1.Get("/suggestions", h.ListSuggestions)
	v1.Get("/suggestions/:id", h.GetSuggestion)
	v1.Post("/suggestions/:id/status", h.UpdateSuggestionStatus)
	v1.Get("/reports/:date", h.GetReport)

	return &Server{
		app:    app,
		addr:   cfg.ListenAddr,
		logger: logger.With().Str("component", "mgmt").Logger(),
	}
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("management API listening")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
