package payment

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/credits"
	"github.com/pixora-ai/pixora-api/internal/services/database"

	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testWebhookSecret = "whsec_test_secret"

type StripeServiceTestSuite struct {
	suite.Suite
	db       *database.DB
	credits  *credits.CreditsService
	orders   *OrderService
	service  *StripeService
	ctx      context.Context
	created  []*stripe.CheckoutSessionParams
	failNext error
}

func TestStripeServiceSuite(t *testing.T) {
	suite.Run(t, new(StripeServiceTestSuite))
}

func (s *StripeServiceTestSuite) SetupTest() {
	db, err := database.New(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filepath.Join(s.T().TempDir(), "stripe.db"),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate())

	s.db = db
	s.ctx = context.Background()
	s.created = nil
	s.failNext = nil
	s.credits = credits.NewCreditsService(db.DB, nil, 5)
	s.orders = NewOrderService(db.DB)
	gate := NewFulfillmentGate(db.DB, s.credits, nil)

	s.service = NewStripeService(models.StripeConfig{WebhookSecret: testWebhookSecret}, db.DB, s.orders, gate)
	s.service.newSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		if s.failNext != nil {
			return nil, s.failNext
		}
		s.created = append(s.created, params)
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/c/cs_test_1"}, nil
	}
}

func (s *StripeServiceTestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *StripeServiceTestSuite) checkout(planID string) *CheckoutResult {
	result, err := s.service.CreateCheckout(s.ctx, CheckoutParams{
		UserID: "user_1",
		PlanID: planID,
		Origin: "https://pixora.example/",
	})
	s.Require().NoError(err)
	return result
}

func (s *StripeServiceTestSuite) signedEvent(id string, eventType stripe.EventType, sessionObject map[string]any) ([]byte, string) {
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": sessionObject},
	})
	s.Require().NoError(err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func paidSession(orderNo, userID, creditsAmount string) map[string]any {
	return map[string]any{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_status": "paid",
		"metadata": map[string]string{
			"order_no":       orderNo,
			"user_id":        userID,
			"plan_id":        "starter",
			"credits_amount": creditsAmount,
		},
	}
}

func (s *StripeServiceTestSuite) TestCreateCheckout() {
	result := s.checkout("starter")

	s.Equal("https://checkout.stripe.test/c/cs_test_1", result.URL)
	s.True(strings.HasPrefix(result.OrderNo, "ORD-"))

	s.Require().Len(s.created, 1)
	params := s.created[0]
	s.Equal(string(stripe.CheckoutSessionModePayment), *params.Mode)
	s.Equal("https://pixora.example/payment/success?order_no="+result.OrderNo, *params.SuccessURL)
	s.Equal("https://pixora.example/payment/cancel", *params.CancelURL)
	s.Equal(result.OrderNo, params.Metadata["order_no"])
	s.Equal("user_1", params.Metadata["user_id"])
	s.Equal("starter", params.Metadata["plan_id"])
	s.Equal("100", params.Metadata["credits_amount"])

	item := params.LineItems[0]
	s.Equal("usd", *item.PriceData.Currency)
	s.Equal(int64(999), *item.PriceData.UnitAmount)
	s.Equal("Starter - 100 Credits", *item.PriceData.ProductData.Name)

	order, err := s.orders.GetByOrderNo(s.ctx, result.OrderNo)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusPending, order.Status)
	s.Equal(int64(100), order.CreditsAmount)
	s.Equal(int64(999), order.Amount)
	s.Equal("cs_test_1", order.PaymentSessionID)
}

func (s *StripeServiceTestSuite) TestCreateCheckout_InvalidPlans() {
	for _, planID := range []string{"", "free", "enterprise"} {
		_, err := s.service.CreateCheckout(s.ctx, CheckoutParams{UserID: "user_1", PlanID: planID})
		s.ErrorIs(err, ErrInvalidPlan, planID)
	}
	s.Empty(s.created)
}

func (s *StripeServiceTestSuite) TestCreateCheckout_SessionFailureStoresNothing() {
	s.failNext = errors.New("stripe unavailable")

	_, err := s.service.CreateCheckout(s.ctx, CheckoutParams{UserID: "user_1", PlanID: "pro"})
	s.Require().Error(err)

	var count int64
	s.Require().NoError(s.db.Model(&models.PurchaseOrder{}).Count(&count).Error)
	s.Equal(int64(0), count)
}

func (s *StripeServiceTestSuite) TestCreateCheckout_NotConfigured() {
	svc := NewStripeService(models.StripeConfig{}, s.db.DB, s.orders, nil)
	_, err := svc.CreateCheckout(s.ctx, CheckoutParams{UserID: "user_1", PlanID: "pro"})
	s.ErrorIs(err, ErrCheckoutNotConfigured)
}

func (s *StripeServiceTestSuite) TestWebhook_CompletedGrantsOnce() {
	order := s.checkout("starter")
	payload, header := s.signedEvent("evt_1", stripe.EventTypeCheckoutSessionCompleted, paidSession(order.OrderNo, "user_1", "100"))

	s.Require().NoError(s.service.HandleWebhook(s.ctx, payload, header))
	s.Require().NoError(s.service.HandleWebhook(s.ctx, payload, header))

	// a distinct event for the same order is also a no-op
	payload, header = s.signedEvent("evt_2", stripe.EventTypeCheckoutSessionCompleted, paidSession(order.OrderNo, "user_1", "100"))
	s.Require().NoError(s.service.HandleWebhook(s.ctx, payload, header))

	balance, err := s.credits.GetBalance(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal(int64(100), balance)

	var processed int64
	s.Require().NoError(s.db.Model(&models.StripeWebhookEvent{}).Count(&processed).Error)
	s.Equal(int64(2), processed)
}

func (s *StripeServiceTestSuite) TestWebhook_SignatureChecks() {
	order := s.checkout("starter")
	payload, header := s.signedEvent("evt_1", stripe.EventTypeCheckoutSessionCompleted, paidSession(order.OrderNo, "user_1", "100"))

	s.ErrorIs(s.service.HandleWebhook(s.ctx, payload, ""), ErrMissingSignature)

	tampered := []byte(strings.Replace(string(payload), `"100"`, `"500"`, 1))
	s.ErrorIs(s.service.HandleWebhook(s.ctx, tampered, header), ErrInvalidSignature)

	unconfigured := NewStripeService(models.StripeConfig{}, s.db.DB, s.orders, nil)
	s.ErrorIs(unconfigured.HandleWebhook(s.ctx, payload, header), ErrWebhookNotConfigured)

	balance, err := s.credits.GetBalance(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal(int64(0), balance)
}

func (s *StripeServiceTestSuite) TestWebhook_BadMetadata() {
	order := s.checkout("starter")

	cases := map[string]map[string]any{
		"missing order": paidSession("", "user_1", "100"),
		"missing user":  paidSession(order.OrderNo, "", "100"),
		"zero credits":  paidSession(order.OrderNo, "user_1", "0"),
		"not a number":  paidSession(order.OrderNo, "user_1", "lots"),
	}
	for name, session := range cases {
		payload, header := s.signedEvent("evt_"+name, stripe.EventTypeCheckoutSessionCompleted, session)
		s.ErrorIs(s.service.HandleWebhook(s.ctx, payload, header), ErrInvalidMetadata, name)
	}

	payload, header := s.signedEvent("evt_mismatch", stripe.EventTypeCheckoutSessionCompleted, paidSession(order.OrderNo, "user_1", "500"))
	s.ErrorIs(s.service.HandleWebhook(s.ctx, payload, header), models.ErrOrderMismatch)
}

func (s *StripeServiceTestSuite) TestWebhook_UnknownOrder() {
	payload, header := s.signedEvent("evt_1", stripe.EventTypeCheckoutSessionCompleted, paidSession("ORD-404", "user_1", "100"))
	s.ErrorIs(s.service.HandleWebhook(s.ctx, payload, header), models.ErrOrderNotFound)

	// failed handling is not recorded so the redelivery is processed again
	var processed int64
	s.Require().NoError(s.db.Model(&models.StripeWebhookEvent{}).Count(&processed).Error)
	s.Equal(int64(0), processed)
}

func (s *StripeServiceTestSuite) TestWebhook_UnpaidCompletionWaits() {
	order := s.checkout("starter")
	session := paidSession(order.OrderNo, "user_1", "100")
	session["payment_status"] = "unpaid"

	payload, header := s.signedEvent("evt_1", stripe.EventTypeCheckoutSessionCompleted, session)
	s.Require().NoError(s.service.HandleWebhook(s.ctx, payload, header))

	stored, err := s.orders.GetByOrderNo(s.ctx, order.OrderNo)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusPending, stored.Status)

	payload, header = s.signedEvent("evt_2", stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, paidSession(order.OrderNo, "user_1", "100"))
	s.Require().NoError(s.service.HandleWebhook(s.ctx, payload, header))

	balance, err := s.credits.GetBalance(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal(int64(100), balance)
}

func (s *StripeServiceTestSuite) TestWebhook_ExpiredMarksFailed() {
	order := s.checkout("pro")

	payload, header := s.signedEvent("evt_1", stripe.EventTypeCheckoutSessionExpired, paidSession(order.OrderNo, "user_1", "500"))
	s.Require().NoError(s.service.HandleWebhook(s.ctx, payload, header))

	stored, err := s.orders.GetByOrderNo(s.ctx, order.OrderNo)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusFailed, stored.Status)

	// a late completion for a failed order is acknowledged without credits
	payload, header = s.signedEvent("evt_2", stripe.EventTypeCheckoutSessionCompleted, paidSession(order.OrderNo, "user_1", "500"))
	s.Require().NoError(s.service.HandleWebhook(s.ctx, payload, header))

	balance, err := s.credits.GetBalance(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal(int64(0), balance)
}

func (s *StripeServiceTestSuite) TestWebhook_IgnoresOtherEvents() {
	payload, header := s.signedEvent("evt_1", "customer.created", map[string]any{"id": "cus_1", "object": "customer"})
	s.NoError(s.service.HandleWebhook(s.ctx, payload, header))
}
