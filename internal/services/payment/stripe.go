package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Webhook and checkout failures the HTTP layer maps to status codes.
var (
	ErrInvalidPlan           = errors.New("invalid plan")
	ErrCheckoutNotConfigured = errors.New("stripe secret key is not configured")
	ErrMissingSignature      = errors.New("missing Stripe-Signature header")
	ErrWebhookNotConfigured  = errors.New("stripe webhook secret is not configured")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrInvalidMetadata       = errors.New("invalid checkout session metadata")
)

const (
	metadataOrderNo       = "order_no"
	metadataUserID        = "user_id"
	metadataPlanID        = "plan_id"
	metadataCreditsAmount = "credits_amount"
)

type checkoutSessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

type StripeService struct {
	cfg        models.StripeConfig
	db         *gorm.DB
	orders     *OrderService
	gate       *FulfillmentGate
	newSession checkoutSessionCreator
	now        func() time.Time
}

func NewStripeService(cfg models.StripeConfig, db *gorm.DB, orders *OrderService, gate *FulfillmentGate) *StripeService {
	if cfg.Currency == "" {
		cfg.Currency = models.DefaultCurrency
	}

	s := &StripeService{
		cfg:    cfg,
		db:     db,
		orders: orders,
		gate:   gate,
		now:    time.Now,
	}
	if cfg.SecretKey != "" {
		sc := client.New(cfg.SecretKey, nil)
		s.newSession = sc.CheckoutSessions.New
	}
	return s
}

type CheckoutParams struct {
	UserID        string
	PlanID        string
	Origin        string
	CustomerEmail string
}

type CheckoutResult struct {
	URL     string `json:"url"`
	OrderNo string `json:"order_no"`
}

// CreateCheckout opens a hosted checkout session for a plan and records the pending order.
func (s *StripeService) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutResult, error) {
	plan, ok := models.GetPlan(params.PlanID)
	if !ok || !plan.IsPurchasable() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, params.PlanID)
	}
	if s.newSession == nil {
		return nil, ErrCheckoutNotConfigured
	}

	origin := strings.TrimRight(params.Origin, "/")
	orderNo := GenerateOrderNo(s.now())

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(plan.ProductName()),
						Description: stripe.String(plan.Description),
					},
					UnitAmount: stripe.Int64(plan.Price),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/payment/success?order_no=%s", origin, orderNo)),
		CancelURL:  stripe.String(origin + "/payment/cancel"),
		Metadata: map[string]string{
			metadataOrderNo:       orderNo,
			metadataUserID:        params.UserID,
			metadataPlanID:        plan.ID,
			metadataCreditsAmount: strconv.FormatInt(plan.Credits, 10),
		},
	}
	sessionParams.Context = ctx

	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	sess, err := s.newSession(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	order := &models.PurchaseOrder{
		OrderNo:          orderNo,
		UserID:           params.UserID,
		Status:           models.OrderStatusPending,
		Amount:           plan.Price,
		Currency:         s.cfg.Currency,
		PlanID:           plan.ID,
		CreditsAmount:    plan.Credits,
		PaymentSessionID: sess.ID,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	fiberlog.Infof("Created checkout session %s for order %s (user %s, plan %s)", sess.ID, orderNo, params.UserID, plan.ID)
	return &CheckoutResult{URL: sess.URL, OrderNo: orderNo}, nil
}

// HandleWebhook verifies a Stripe event against the raw request body and applies it.
// A nil error means the event may be acknowledged.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	if s.cfg.WebhookSecret == "" {
		return ErrWebhookNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	seen, err := s.alreadyProcessed(ctx, event.ID)
	if err != nil {
		return err
	}
	if seen {
		fiberlog.Debugf("Stripe event %s already processed", event.ID)
		return nil
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		err = s.handleSessionPaid(ctx, event)
	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		err = s.handleSessionFailed(ctx, event)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	return s.recordProcessed(ctx, event)
}

func (s *StripeService) handleSessionPaid(ctx context.Context, event stripe.Event) error {
	sess, err := decodeSession(event)
	if err != nil {
		return err
	}

	if event.Type == stripe.EventTypeCheckoutSessionCompleted && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		fiberlog.Infof("Checkout session %s completed without payment, waiting for async confirmation", sess.ID)
		return nil
	}

	orderNo := sess.Metadata[metadataOrderNo]
	userID := sess.Metadata[metadataUserID]
	creditsAmount, _ := strconv.ParseInt(sess.Metadata[metadataCreditsAmount], 10, 64)
	if orderNo == "" || userID == "" || creditsAmount <= 0 {
		return ErrInvalidMetadata
	}

	result, err := s.gate.Fulfill(ctx, models.FulfillParams{
		OrderNo:          orderNo,
		UserID:           userID,
		Credits:          creditsAmount,
		PaymentSessionID: sess.ID,
	})
	if errors.Is(err, models.ErrOrderNotPending) {
		fiberlog.Errorf("Payment captured for order %s which is no longer pending, needs manual review", orderNo)
		return nil
	}
	if err != nil {
		return err
	}

	if !result.Applied {
		fiberlog.Infof("Order %s already fulfilled, ignoring event %s", orderNo, event.ID)
	}
	return nil
}

func (s *StripeService) handleSessionFailed(ctx context.Context, event stripe.Event) error {
	sess, err := decodeSession(event)
	if err != nil {
		return err
	}

	orderNo := sess.Metadata[metadataOrderNo]
	if orderNo == "" {
		fiberlog.Warnf("Stripe event %s for session %s carries no order number", event.ID, sess.ID)
		return nil
	}

	if _, err := s.gate.MarkFailed(ctx, orderNo); err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			fiberlog.Warnf("Stripe event %s references unknown order %s", event.ID, orderNo)
			return nil
		}
		return err
	}
	return nil
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return &sess, nil
}

func (s *StripeService) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.StripeWebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event %s: %w", eventID, err)
	}
	return count > 0, nil
}

func (s *StripeService) recordProcessed(ctx context.Context, event stripe.Event) error {
	row := models.StripeWebhookEvent{EventID: event.ID, EventType: string(event.Type)}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record webhook event %s: %w", event.ID, err)
	}
	return nil
}
