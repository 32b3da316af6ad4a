package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/core"
	"github.com/rescam/phishguard/internal/realtime"
)

// Server exposes the Pub/Sub push webhook and the dashboard API over a
// single fiber app.
type Server struct {
	app       *fiber.App
	addr      string
	processor *core.Processor
	store     core.ResultStore
	hub       *realtime.Hub
	dedupe    Deduplicator
	enqueue   func(core.Job) bool
	logger    *zap.Logger
}

func NewServer(
	addr string,
	processor *core.Processor,
	store core.ResultStore,
	hub *realtime.Hub,
	dedupe Deduplicator,
	enqueue func(core.Job) bool,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          0, // streaming responses manage their own lifetime
	})

	s := &Server{
		app:       app,
		addr:      addr,
		processor: processor,
		store:     store,
		hub:       hub,
		dedupe:    dedupe,
		enqueue:   enqueue,
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Post("/webhook/gmail", s.handleGmailWebhook)

	api := s.app.Group("/api/v1")
	api.Get("/users/:user/classifications", s.handleListClassifications)
	api.Get("/users/:user/classifications/stream", s.handleStreamClassifications)
	api.Get("/users/:user/failures", s.handleListFailures)
	api.Post("/users/:user/watch", s.handleRegisterWatch)
}

// Start begins serving and blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.addr))
	if err := s.app.Listen(s.addr); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
