package api

import (
	"github.com/pixora-ai/pixora-api/internal/models"

	"github.com/gofiber/fiber/v2"
)

type PricingResponse struct {
	Currency string        `json:"currency"`
	Plans    []models.Plan `json:"plans"`
}

// PricingHandler serves the static plan table shown on the pricing page.
func PricingHandler(currency string) fiber.Handler {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	resp := PricingResponse{Currency: currency, Plans: models.Plans}

	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "public, max-age=300")
		return c.JSON(resp)
	}
}
