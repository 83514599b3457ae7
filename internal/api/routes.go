package api

import (
	"github.com/pixora-ai/pixora-api/internal/services/middleware"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups every HTTP handler of the service. Metrics and ClerkWebhook are optional.
type Handlers struct {
	Generate      *GenerateHandler
	Credits       *CreditsHandler
	Checkout      *CheckoutHandler
	Orders        *OrdersHandler
	Pricing       fiber.Handler
	StripeWebhook *StripeWebhookHandler
	ClerkWebhook  *ClerkWebhookHandler
	Health        *HealthHandler
	Metrics       fiber.Handler
}

// RegisterRoutes mounts the public API. Webhooks authenticate by signature, not by session.
func RegisterRoutes(router fiber.Router, h Handlers, authMiddleware *middleware.AuthMiddleware) {
	router.Get("/health", h.Health.HealthCheck)
	if h.Metrics != nil {
		router.Get("/metrics", h.Metrics)
	}

	api := router.Group("/api")

	api.Options("/generate", h.Generate.Preflight)
	api.Get("/generate", h.Generate.MethodNotAllowed)
	api.Post("/generate", authMiddleware.RequireAuth(signInToGenerateMessage), h.Generate.Generate)

	api.Get("/credits/balance", authMiddleware.RequireAuth(), h.Credits.GetBalance)
	api.Get("/credits/transactions", authMiddleware.RequireAuth(), h.Credits.ListTransactions)

	api.Get("/pricing", h.Pricing)
	api.Post("/checkout", authMiddleware.RequireAuth(), h.Checkout.CreateCheckout)
	api.Get("/orders/:order_no", authMiddleware.RequireAuth(), h.Orders.GetOrder)

	api.Post("/webhooks/stripe", h.StripeWebhook.HandleWebhook)
	if h.ClerkWebhook != nil {
		api.Post("/webhooks/clerk", h.ClerkWebhook.HandleWebhook)
	}
}
