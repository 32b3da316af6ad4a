package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/core"
)

// pushEnvelope is the Pub/Sub push delivery wrapper. Only the payload data
// and message id are relevant; attributes and subscription are ignored.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// gmailNotification is the decoded Gmail watch payload inside the envelope.
type gmailNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// handleGmailWebhook accepts a Pub/Sub push delivery. Malformed envelopes
// get a 400 so Pub/Sub stops retrying them; everything structurally valid is
// acknowledged with 200 immediately and processed in the background, since
// push subscriptions redeliver on slow responses.
func (s *Server) handleGmailWebhook(c *fiber.Ctx) error {
	var envelope pushEnvelope
	if err := json.Unmarshal(c.Body(), &envelope); err != nil {
		s.logger.Warn("Rejected webhook with invalid JSON", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if envelope.Message.Data == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing message data"})
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		s.logger.Warn("Rejected webhook with invalid base64 payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid base64 payload"})
	}

	var notification gmailNotification
	if err := json.Unmarshal(decoded, &notification); err != nil {
		s.logger.Warn("Rejected webhook with invalid notification payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification payload"})
	}
	if notification.EmailAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing emailAddress"})
	}

	historyID, err := parseHistoryID(notification.HistoryID)
	if err != nil {
		s.logger.Warn("Rejected webhook with invalid historyId",
			zap.String("history_id", notification.HistoryID.String()),
			zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid historyId"})
	}

	if envelope.Message.MessageID != "" {
		fresh, err := s.dedupe.MarkSeen(c.Context(), envelope.Message.MessageID)
		if err != nil {
			// Deduplication is an optimization; processing is idempotent
			// either way, so a failed check does not block the event.
			s.logger.Warn("Deduplication check failed", zap.Error(err))
		} else if !fresh {
			s.logger.Debug("Dropped duplicate webhook delivery",
				zap.String("pubsub_message_id", envelope.Message.MessageID))
			return c.Status(fiber.StatusOK).Send(nil)
		}
	}

	job := core.Job{User: notification.EmailAddress, HistoryID: historyID}
	if !s.enqueue(job) {
		s.logger.Warn("Dropped notification, queue full",
			zap.String("user", job.User),
			zap.Uint64("history_id", job.HistoryID))
	}

	// Pub/Sub only inspects the status code; the ack body stays empty.
	return c.Status(fiber.StatusOK).Send(nil)
}

// parseHistoryID accepts both the numeric and string forms Gmail emits.
func parseHistoryID(n json.Number) (uint64, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("historyId out of range: %d", v)
	}
	return uint64(v), nil
}
