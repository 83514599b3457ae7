package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/payment"
)

// ImageGenerator produces a base64 encoded image for a validated prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, userID string, prompt *models.ImagePrompt, requestID string) (string, error)
}

// Ledger is the subset of the credit ledger the handlers depend on.
type Ledger interface {
	EnsureFreeCredits(ctx context.Context, userID string) (bool, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	HasCredits(ctx context.Context, userID string) (bool, error)
	Consume(ctx context.Context, userID string) (bool, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.CreditTransaction, int64, error)
}

type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutResult, error)
}

type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type OrderLookup interface {
	GetForUser(ctx context.Context, orderNo, userID string) (*models.PurchaseOrder, error)
}
