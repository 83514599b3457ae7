package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pixora-ai/pixora-api/internal/services/middleware"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	svix "github.com/svix/svix-webhooks/go"
)

const clerkUserCreated = "user.created"

// ClerkWebhookHandler grants the welcome bonus as soon as Clerk reports a new user,
// so the first balance request finds it already in place.
type ClerkWebhookHandler struct {
	webhookSecret string
	ledger        Ledger
}

func NewClerkWebhookHandler(webhookSecret string, ledger Ledger) *ClerkWebhookHandler {
	return &ClerkWebhookHandler{
		webhookSecret: webhookSecret,
		ledger:        ledger,
	}
}

type ClerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ClerkUserData struct {
	ID string `json:"id"`
}

func (h *ClerkWebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	if h.webhookSecret == "" {
		return respondMessage(c, fiber.StatusInternalServerError, "Webhook secret not configured", nil)
	}

	wh, err := svix.NewWebhook(h.webhookSecret)
	if err != nil {
		return respondMessage(c, fiber.StatusInternalServerError, "Failed to initialize webhook verifier", err)
	}

	payload := c.Body()
	headers := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})

	if err := wh.Verify(payload, headers); err != nil {
		return respondMessage(c, fiber.StatusUnauthorized, "Invalid webhook signature", err)
	}

	var event ClerkWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return respondMessage(c, fiber.StatusBadRequest, "Invalid JSON payload", err)
	}

	switch event.Type {
	case clerkUserCreated:
		if err := h.handleUserCreated(c, event.Data); err != nil {
			return respondMessage(c, fiber.StatusInternalServerError, "Failed to process user.created event", err)
		}
	default:
		fiberlog.Debugf("[%s] Ignoring Clerk event %s", middleware.RequestID(c), event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}

func (h *ClerkWebhookHandler) handleUserCreated(c *fiber.Ctx, data json.RawMessage) error {
	var user ClerkUserData
	if err := json.Unmarshal(data, &user); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if user.ID == "" {
		return fmt.Errorf("user.created event without user id")
	}

	granted, err := h.ledger.EnsureFreeCredits(c.UserContext(), user.ID)
	if err != nil {
		return fmt.Errorf("failed to grant welcome bonus: %w", err)
	}
	if granted {
		fiberlog.Infof("[%s] Granted welcome bonus to new user %s", middleware.RequestID(c), user.ID)
	}
	return nil
}
