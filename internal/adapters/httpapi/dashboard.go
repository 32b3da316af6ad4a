package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/core"
)

// handleListClassifications returns the stored classification history for a
// user, newest first.
func (s *Server) handleListClassifications(c *fiber.Ctx) error {
	user := c.Params("user")

	records, err := s.store.List(c.Context(), user)
	if err != nil {
		s.logger.Error("Failed to list classifications",
			zap.String("user", user),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load classifications"})
	}
	if records == nil {
		records = []core.StoredRecord{}
	}

	return c.JSON(fiber.Map{"emails": records})
}

// handleStreamClassifications pushes newly classified emails to the
// dashboard over Server-Sent Events. Each event carries one StoredRecord;
// a comment line every 30 seconds keeps idle connections open through
// proxies.
func (s *Server) handleStreamClassifications(c *fiber.Ctx) error {
	user := c.Params("user")

	updates, cancel := s.hub.Subscribe(user)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepalive := time.NewTicker(30 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case rec, ok := <-updates:
				if !ok {
					return
				}
				payload, err := json.Marshal(rec)
				if err != nil {
					s.logger.Error("Failed to encode stream event", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: classification\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					return
				}
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// handleListFailures exposes the dead-letter records for a user so an
// operator can see what the pipeline gave up on.
func (s *Server) handleListFailures(c *fiber.Ctx) error {
	user := c.Params("user")

	failures, err := s.store.ListFailures(c.Context(), user)
	if err != nil {
		s.logger.Error("Failed to list failures",
			zap.String("user", user),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load failures"})
	}
	if failures == nil {
		failures = []core.FailureRecord{}
	}

	return c.JSON(fiber.Map{"failures": failures})
}

// handleRegisterWatch registers (or renews) a Gmail watch for the user and
// anchors the stored history cursor at the returned historyId.
func (s *Server) handleRegisterWatch(c *fiber.Ctx) error {
	user := c.Params("user")

	reg, err := s.processor.RegisterWatch(c.Context(), user)
	if err != nil {
		s.logger.Error("Failed to register watch",
			zap.String("user", user),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "failed to register watch"})
	}

	return c.JSON(fiber.Map{
		"historyId":  reg.HistoryID,
		"expiration": reg.Expiration.Format(time.RFC3339),
	})
}
