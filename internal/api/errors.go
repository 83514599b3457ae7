package api

import (
	"errors"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/auth"
	"github.com/pixora-ai/pixora-api/internal/services/middleware"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitzero"`
}

// respondError renders err as an ErrorResponse. Only AppError messages reach the client;
// anything else becomes a generic 500.
func respondError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	status := appErr.GetStatusCode()

	if status >= fiber.StatusInternalServerError {
		fiberlog.Errorf("[%s] %s %s failed: %v", middleware.RequestID(c), c.Method(), c.Path(), err)
	} else {
		fiberlog.Debugf("[%s] %s %s rejected: %v", middleware.RequestID(c), c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
	})
}

// respondMessage renders a fixed client message for err, keeping err for the log.
func respondMessage(c *fiber.Ctx, status int, message string, err error) error {
	appErr := &models.AppError{Message: message, StatusCode: status, Cause: err}
	if err == nil {
		appErr.Cause = errors.New(message)
	}
	return respondError(c, appErr)
}

func requireUser(c *fiber.Ctx) (string, error) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return "", models.NewAuthenticationError("Not authenticated")
	}
	return userID, nil
}
