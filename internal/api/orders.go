package api

import (
	"errors"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"

	"github.com/gofiber/fiber/v2"
)

type OrdersHandler struct {
	orders OrderLookup
}

func NewOrdersHandler(orders OrderLookup) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

// OrderResponse is what the payment success page polls until the webhook lands.
type OrderResponse struct {
	OrderNo       string             `json:"order_no"`
	Status        models.OrderStatus `json:"status"`
	PlanID        string             `json:"plan_id"`
	CreditsAmount int64              `json:"credits_amount"`
	Amount        int64              `json:"amount"`
	Currency      string             `json:"currency"`
	PaidAt        *time.Time         `json:"paid_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func (h *OrdersHandler) GetOrder(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.GetForUser(c.UserContext(), c.Params("order_no"), userID)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return respondError(c, models.NewNotFoundError("Order not found", err))
		}
		return respondMessage(c, fiber.StatusInternalServerError, "Failed to get order", err)
	}

	return c.JSON(OrderResponse{
		OrderNo:       order.OrderNo,
		Status:        order.Status,
		PlanID:        order.PlanID,
		CreditsAmount: order.CreditsAmount,
		Amount:        order.Amount,
		Currency:      order.Currency,
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
	})
}
