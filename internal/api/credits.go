package api

import (
	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/credits"

	"github.com/gofiber/fiber/v2"
)

type CreditsHandler struct {
	ledger Ledger
}

func NewCreditsHandler(ledger Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

type BalanceResponse struct {
	Credits int64 `json:"credits"`
}

type TransactionsResponse struct {
	Transactions []models.CreditTransaction `json:"transactions"`
	Total        int64                      `json:"total"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

// GetBalance grants the welcome bonus on first visit and returns the spendable balance.
func (h *CreditsHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	if _, err := h.ledger.EnsureFreeCredits(ctx, userID); err != nil {
		return respondMessage(c, fiber.StatusInternalServerError, "Failed to get credit balance", err)
	}

	balance, err := h.ledger.GetBalance(ctx, userID)
	if err != nil {
		return respondMessage(c, fiber.StatusInternalServerError, "Failed to get credit balance", err)
	}

	return c.JSON(BalanceResponse{Credits: balance})
}

// ListTransactions returns the caller's ledger, newest first.
func (h *CreditsHandler) ListTransactions(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return respondError(c, err)
	}

	limit := c.QueryInt("limit", credits.DefaultHistoryLimit)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 {
		limit = credits.DefaultHistoryLimit
	}
	if limit > credits.MaxHistoryLimit {
		limit = credits.MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	transactions, total, err := h.ledger.ListTransactions(c.UserContext(), userID, limit, offset)
	if err != nil {
		return respondMessage(c, fiber.StatusInternalServerError, "Failed to get credit transactions", err)
	}

	return c.JSON(TransactionsResponse{
		Transactions: transactions,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	})
}
