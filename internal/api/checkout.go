package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/pixora-ai/pixora-api/internal/services/auth"
	"github.com/pixora-ai/pixora-api/internal/services/payment"

	"github.com/gofiber/fiber/v2"
)

type CheckoutHandler struct {
	checkout  CheckoutCreator
	publicURL string
}

// NewCheckoutHandler uses publicURL to build redirect URLs when a request has no Origin header.
func NewCheckoutHandler(checkout CheckoutCreator, publicURL string) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:  checkout,
		publicURL: publicURL,
	}
}

type CheckoutRequest struct {
	PlanID string `json:"planId"`
}

func (h *CheckoutHandler) CreateCheckout(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)
	if identity == nil || identity.UserID == "" {
		return respondMessage(c, fiber.StatusUnauthorized, "Not authenticated", nil)
	}

	var req CheckoutRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return respondMessage(c, fiber.StatusBadRequest, "Invalid request body", err)
		}
	}

	req.PlanID = strings.TrimSpace(req.PlanID)
	if req.PlanID == "" {
		return respondMessage(c, fiber.StatusBadRequest, "planId is required", nil)
	}

	origin := c.Get(fiber.HeaderOrigin)
	if origin == "" {
		origin = h.publicURL
	}

	result, err := h.checkout.CreateCheckout(c.UserContext(), payment.CheckoutParams{
		UserID:        identity.UserID,
		PlanID:        req.PlanID,
		Origin:        origin,
		CustomerEmail: identity.Email,
	})
	if err != nil {
		if errors.Is(err, payment.ErrInvalidPlan) {
			return respondMessage(c, fiber.StatusBadRequest, "Invalid plan", err)
		}
		return respondMessage(c, fiber.StatusInternalServerError, "Checkout failed", err)
	}

	return c.JSON(result)
}
