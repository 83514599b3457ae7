package server

import (
	"runtime"

	"github.com/pixora-ai/pixora-api/internal/api"
	"github.com/pixora-ai/pixora-api/internal/config"
	"github.com/pixora-ai/pixora-api/internal/services/auth"
	"github.com/pixora-ai/pixora-api/internal/services/credits"
	"github.com/pixora-ai/pixora-api/internal/services/gemini/generate"
	"github.com/pixora-ai/pixora-api/internal/services/middleware"
	"github.com/pixora-ai/pixora-api/internal/services/observability"
	"github.com/pixora-ai/pixora-api/internal/services/payment"
	"github.com/pixora-ai/pixora-api/internal/services/scheduler"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

func (s *Server) buildHandlers() api.Handlers {
	cfg := s.config
	db := s.db.DB

	observability.RegisterMetrics()

	creditsService := credits.NewCreditsService(db, s.publisher, cfg.Credits.WelcomeBonus)
	orderService := payment.NewOrderService(db)
	gate := payment.NewFulfillmentGate(db, creditsService, s.publisher)
	s.expiry = scheduler.NewOrderExpiryScheduler(orderService, gate, cfg.Orders)

	stripeService := payment.NewStripeService(cfg.StripeConfig(), db, orderService, gate)
	imageService := generate.NewImageService(cfg.Generation, s.limiter, s.newBreaker())

	// A nil *redis.Client must not reach the handler as a non-nil interface.
	var redisClient redis.UniversalClient
	if s.redis != nil {
		redisClient = s.redis
	}

	handlers := api.Handlers{
		Generate:      api.NewGenerateHandler(imageService, creditsService, generate.LimitsFrom(cfg.Generation)),
		Credits:       api.NewCreditsHandler(creditsService),
		Checkout:      api.NewCheckoutHandler(stripeService, cfg.Server.PublicURL),
		Orders:        api.NewOrdersHandler(orderService),
		Pricing:       api.PricingHandler(cfg.StripeConfig().Currency),
		StripeWebhook: api.NewStripeWebhookHandler(stripeService),
		Health:        api.NewHealthHandler(s.db, redisClient),
		Metrics:       observability.MetricsHandler(),
	}

	if clerk := cfg.Auth.ClerkConfig; clerk != nil && clerk.WebhookSecret != "" {
		handlers.ClerkWebhook = api.NewClerkWebhookHandler(clerk.WebhookSecret, creditsService)
	}

	return handlers
}

// newAuthMiddleware accepts Clerk session tokens, first-party JWTs, or both.
func (s *Server) newAuthMiddleware() *middleware.AuthMiddleware {
	var verifiers []auth.TokenVerifier

	if clerk := s.config.Auth.ClerkConfig; clerk != nil && clerk.SecretKey != "" {
		verifiers = append(verifiers, auth.NewClerkVerifier(clerk.SecretKey))
	}
	if jwtCfg := s.config.Auth.JWTConfig; jwtCfg != nil && jwtCfg.Secret != "" {
		verifiers = append(verifiers, auth.NewJWTVerifier(jwtCfg.Secret, jwtCfg.Issuer))
	}
	if len(verifiers) == 0 {
		fiberlog.Warn("No token verifier configured - every authenticated route will return 401")
	}

	return middleware.NewAuthMiddleware(auth.Chain(verifiers...), nil)
}

func registerRoutes(app *fiber.App, cfg *config.Config, handlers api.Handlers, authMiddleware *middleware.AuthMiddleware) {
	api.RegisterRoutes(app, handlers, authMiddleware)
	app.Get("/", welcomeHandler(cfg))
}

func welcomeHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":     "Pixora image generation API",
			"version":     "1.0.0",
			"go_version":  runtime.Version(),
			"status":      "running",
			"environment": cfg.Server.Environment,
			"endpoints": fiber.Map{
				"generate": "/api/generate",
				"balance":  "/api/credits/balance",
				"pricing":  "/api/pricing",
				"checkout": "/api/checkout",
				"health":   "/health",
			},
		})
	}
}
