package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/credits"
	"github.com/pixora-ai/pixora-api/internal/services/events"
	"github.com/pixora-ai/pixora-api/internal/services/observability"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "github.com/pixora-ai/pixora-api/internal/services/payment"

// FulfillmentGate turns a confirmed payment into credits exactly once per order.
// The pending to paid transition and the grant commit together or not at all.
type FulfillmentGate struct {
	db        *gorm.DB
	credits   *credits.CreditsService
	publisher events.Publisher
	tracer    trace.Tracer
	now       func() time.Time
}

func NewFulfillmentGate(db *gorm.DB, creditsService *credits.CreditsService, publisher events.Publisher) *FulfillmentGate {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &FulfillmentGate{
		db:        db,
		credits:   creditsService,
		publisher: publisher,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// Fulfill applies a payment confirmation. Redelivered confirmations return Applied=false.
func (g *FulfillmentGate) Fulfill(ctx context.Context, params models.FulfillParams) (*models.FulfillResult, error) {
	ctx, span := g.tracer.Start(ctx, "payment.Fulfill", trace.WithAttributes(
		attribute.String("order.no", params.OrderNo),
		attribute.String("user.id", params.UserID),
	))
	defer span.End()

	result, err := g.fulfill(ctx, params)
	switch {
	case err != nil:
		observability.Fulfillments.WithLabelValues("error").Inc()
		observability.RecordSpanError(span, err)
	case result.Applied:
		observability.Fulfillments.WithLabelValues("applied").Inc()
	default:
		observability.Fulfillments.WithLabelValues("duplicate").Inc()
	}
	return result, err
}

func (g *FulfillmentGate) fulfill(ctx context.Context, params models.FulfillParams) (*models.FulfillResult, error) {
	order, err := findOrder(g.db.WithContext(ctx), params.OrderNo)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusPaid:
		return &models.FulfillResult{Applied: false, Order: order}, nil
	case models.OrderStatusFailed:
		return nil, fmt.Errorf("order %s: %w", order.OrderNo, models.ErrOrderNotPending)
	}

	if params.UserID != order.UserID || params.Credits != order.CreditsAmount {
		fiberlog.Warnf("Payment metadata for order %s does not match: user %s/%s credits %d/%d",
			order.OrderNo, params.UserID, order.UserID, params.Credits, order.CreditsAmount)
		return nil, fmt.Errorf("order %s: %w", order.OrderNo, models.ErrOrderMismatch)
	}

	applied := false
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paidAt := g.now().UTC()
		res := tx.Model(&models.PurchaseOrder{}).
			Where("order_no = ? AND status = ?", order.OrderNo, models.OrderStatusPending).
			Updates(map[string]any{
				"status":             models.OrderStatusPaid,
				"paid_at":            paidAt,
				"payment_session_id": params.PaymentSessionID,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark order %s paid: %w", order.OrderNo, res.Error)
		}

		if res.RowsAffected == 0 {
			current, err := findOrder(tx, order.OrderNo)
			if err != nil {
				return err
			}
			order = current
			if current.Status == models.OrderStatusPaid {
				return nil
			}
			return fmt.Errorf("order %s: %w", order.OrderNo, models.ErrOrderNotPending)
		}

		_, err := g.credits.WithTx(tx).Grant(ctx, models.GrantParams{
			UserID:      order.UserID,
			Amount:      order.CreditsAmount,
			OrderNo:     order.OrderNo,
			Description: fmt.Sprintf("Purchased %d credits", order.CreditsAmount),
			GrantKey:    models.OrderGrantKey(order.OrderNo),
		})
		if errors.Is(err, models.ErrDuplicateGrant) {
			return models.NewDataInconsistencyError(
				fmt.Sprintf("order %s was pending but already has a grant", order.OrderNo), err)
		}
		if err != nil {
			return err
		}

		order.Status = models.OrderStatusPaid
		order.PaidAt = &paidAt
		order.PaymentSessionID = params.PaymentSessionID
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		fiberlog.Infof("Order %s paid, granted %d credits to user %s", order.OrderNo, order.CreditsAmount, order.UserID)
		g.publish(ctx, events.LedgerEvent{Type: events.TypeCreditsGranted, UserID: order.UserID, Credits: order.CreditsAmount, OrderNo: order.OrderNo})
		g.publish(ctx, events.LedgerEvent{Type: events.TypeOrderPaid, UserID: order.UserID, Credits: order.CreditsAmount, OrderNo: order.OrderNo})
	}

	return &models.FulfillResult{Applied: applied, Order: order}, nil
}

// MarkFailed moves a pending order to failed. It reports false when the order had
// already left pending.
func (g *FulfillmentGate) MarkFailed(ctx context.Context, orderNo string) (bool, error) {
	res := g.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("order_no = ? AND status = ?", orderNo, models.OrderStatusPending).
		Update("status", models.OrderStatusFailed)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark order %s failed: %w", orderNo, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := findOrder(g.db.WithContext(ctx), orderNo); err != nil {
			return false, err
		}
		return false, nil
	}

	fiberlog.Infof("Order %s marked failed", orderNo)
	return true, nil
}

func (g *FulfillmentGate) publish(ctx context.Context, event events.LedgerEvent) {
	if err := g.publisher.Publish(ctx, event); err != nil {
		fiberlog.Warnf("Failed to publish %s event for order %s: %v", event.Type, event.OrderNo, err)
	}
}
