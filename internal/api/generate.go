package api

import (
	"encoding/json"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/auth"
	"github.com/pixora-ai/pixora-api/internal/services/gemini/generate"
	"github.com/pixora-ai/pixora-api/internal/services/middleware"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const signInToGenerateMessage = "Please sign in to generate images."

// GenerateHandler charges one credit per successful image.
type GenerateHandler struct {
	generator ImageGenerator
	ledger    Ledger
	limits    generate.Limits
}

func NewGenerateHandler(generator ImageGenerator, ledger Ledger, limits generate.Limits) *GenerateHandler {
	return &GenerateHandler{
		generator: generator,
		ledger:    ledger,
		limits:    limits,
	}
}

// Generate validates the request, checks the balance, calls the model and consumes
// a credit only once an image was produced.
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	reqID := middleware.RequestID(c)

	userID, ok := auth.GetUserID(c)
	if !ok {
		return respondError(c, models.NewAuthenticationError(signInToGenerateMessage))
	}

	var req models.GenerateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respondError(c, models.NewValidationError("Invalid JSON in request body.", err))
	}

	prompt, err := generate.BuildPrompt(&req, h.limits)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()

	if _, err := h.ledger.EnsureFreeCredits(ctx, userID); err != nil {
		return respondError(c, models.NewInternalError("Failed to check credits.", err))
	}

	hasCredits, err := h.ledger.HasCredits(ctx, userID)
	if err != nil {
		return respondError(c, models.NewInternalError("Failed to check credits.", err))
	}
	if !hasCredits {
		return respondError(c, models.NewInsufficientCreditsError())
	}

	image, err := h.generator.Generate(ctx, userID, prompt, reqID)
	if err != nil {
		return respondError(c, err)
	}

	consumed, err := h.ledger.Consume(ctx, userID)
	if err != nil {
		return respondError(c, models.NewInternalError("Failed to deduct credit.", err))
	}
	if !consumed {
		// The balance was spent by a concurrent request after the check above.
		fiberlog.Warnf("[%s] Generated image for user %s without a credit to consume", reqID, userID)
	}

	return c.JSON(models.GenerateResponse{
		Success: true,
		Image:   image,
	})
}

// Preflight answers CORS preflight requests. The CORS middleware adds the headers.
func (h *GenerateHandler) Preflight(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *GenerateHandler) MethodNotAllowed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, "POST, OPTIONS")
	return respondMessage(c, fiber.StatusMethodNotAllowed, "Method not allowed. Use POST.", nil)
}
