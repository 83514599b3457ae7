package api

import (
	"bytes"
	"errors"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/middleware"
	"github.com/pixora-ai/pixora-api/internal/services/payment"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const stripeSignatureHeader = "Stripe-Signature"

type StripeWebhookHandler struct {
	processor WebhookProcessor
}

func NewStripeWebhookHandler(processor WebhookProcessor) *StripeWebhookHandler {
	return &StripeWebhookHandler{processor: processor}
}

// HandleWebhook passes the untouched request body to signature verification. Any non-2xx
// response makes Stripe redeliver the event.
func (h *StripeWebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := bytes.Clone(c.Body())

	err := h.processor.HandleWebhook(c.UserContext(), payload, c.Get(stripeSignatureHeader))
	if err == nil {
		return c.JSON(fiber.Map{"received": true})
	}

	switch {
	case errors.Is(err, payment.ErrMissingSignature):
		return respondMessage(c, fiber.StatusBadRequest, "Missing stripe-signature header", err)
	case errors.Is(err, payment.ErrInvalidSignature):
		return respondMessage(c, fiber.StatusBadRequest, "Invalid signature", err)
	case errors.Is(err, payment.ErrInvalidMetadata):
		return respondMessage(c, fiber.StatusBadRequest, "Missing metadata", err)
	case errors.Is(err, models.ErrOrderMismatch):
		return respondMessage(c, fiber.StatusBadRequest, "Order does not match payment", err)
	case errors.Is(err, payment.ErrWebhookNotConfigured):
		return respondMessage(c, fiber.StatusInternalServerError, "Webhook secret not configured", err)
	case errors.Is(err, models.ErrOrderNotFound):
		fiberlog.Warnf("[%s] Stripe webhook for unknown order: %v", middleware.RequestID(c), err)
		return respondMessage(c, fiber.StatusNotFound, "Order not found", err)
	default:
		return respondMessage(c, fiber.StatusInternalServerError, "Webhook handler failed", err)
	}
}
