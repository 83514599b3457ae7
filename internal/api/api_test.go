package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pixora-ai/pixora-api/internal/api/mocks"
	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/auth"
	"github.com/pixora-ai/pixora-api/internal/services/credits"
	"github.com/pixora-ai/pixora-api/internal/services/database"
	"github.com/pixora-ai/pixora-api/internal/services/gemini/generate"
	"github.com/pixora-ai/pixora-api/internal/services/middleware"
	"github.com/pixora-ai/pixora-api/internal/services/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
	svix "github.com/svix/svix-webhooks/go"
)

const (
	testJWTSecret = "api-test-secret"
	testPublicURL = "https://pixora.example"
)

var testClerkSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("clerk-webhook-test-secret"))

type APITestSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	db        *database.DB
	ledger    *credits.CreditsService
	orders    *payment.OrderService
	generator *mocks.MockImageGenerator
	checkout  *mocks.MockCheckoutCreator
	webhooks  *mocks.MockWebhookProcessor
	verifier  *auth.JWTVerifier
	app       *fiber.App
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	db, err := database.New(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filepath.Join(s.T().TempDir(), "api.db"),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate())

	s.ctx = context.Background()
	s.db = db
	s.ctrl = gomock.NewController(s.T())
	s.ledger = credits.NewCreditsService(db.DB, nil, models.DefaultWelcomeBonusCredits)
	s.orders = payment.NewOrderService(db.DB)
	s.generator = mocks.NewMockImageGenerator(s.ctrl)
	s.checkout = mocks.NewMockCheckoutCreator(s.ctrl)
	s.webhooks = mocks.NewMockWebhookProcessor(s.ctrl)
	s.verifier = auth.NewJWTVerifier(testJWTSecret, "")

	limits := generate.LimitsFrom(models.GenerationConfig{
		MaxPromptLength: models.DefaultMaxPromptLength,
		MaxImageBytes:   models.DefaultMaxImageBytes,
	})

	s.app = fiber.New()
	s.app.Use(middleware.RequestIDMiddleware())
	RegisterRoutes(s.app, Handlers{
		Generate:      NewGenerateHandler(s.generator, s.ledger, limits),
		Credits:       NewCreditsHandler(s.ledger),
		Checkout:      NewCheckoutHandler(s.checkout, testPublicURL),
		Orders:        NewOrdersHandler(s.orders),
		Pricing:       PricingHandler(""),
		StripeWebhook: NewStripeWebhookHandler(s.webhooks),
		ClerkWebhook:  NewClerkWebhookHandler(testClerkSecret, s.ledger),
		Health:        NewHealthHandler(db, nil),
	}, middleware.NewAuthMiddleware(s.verifier, nil))
}

func (s *APITestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *APITestSuite) token(userID string) string {
	token, err := s.verifier.IssueToken(auth.SessionClaims{
		Email: userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s.Require().NoError(err)
	return token
}

type request struct {
	method  string
	path    string
	body    string
	userID  string
	headers map[string]string
}

func (s *APITestSuite) do(r request) (*http.Response, map[string]any) {
	req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if r.userID != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(r.userID))
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)

	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	var body map[string]any
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		s.Require().NoError(json.Unmarshal(data, &body))
	}
	return resp, body
}

func (s *APITestSuite) balance(userID string) int64 {
	balance, err := s.ledger.GetBalance(s.ctx, userID)
	s.Require().NoError(err)
	return balance
}

func (s *APITestSuite) TestGenerate_RequiresSignIn() {
	resp, body := s.do(request{method: fiber.MethodPost, path: "/api/generate", body: `{"prompt":"a cat"}`})

	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
	s.Equal(false, body["success"])
	s.Equal("Please sign in to generate images.", body["error"])
}

func (s *APITestSuite) TestGenerate_MethodHandling() {
	resp, body := s.do(request{method: fiber.MethodGet, path: "/api/generate"})
	s.Equal(fiber.StatusMethodNotAllowed, resp.StatusCode)
	s.Equal("Method not allowed. Use POST.", body["error"])

	resp, _ = s.do(request{method: fiber.MethodOptions, path: "/api/generate"})
	s.Equal(fiber.StatusNoContent, resp.StatusCode)
}

func (s *APITestSuite) TestGenerate_ValidationFailsBeforeAnyCharge() {
	cases := []struct {
		body    string
		message string
	}{
		{body: `{"prompt":`, message: "Invalid JSON in request body."},
		{body: `{"prompt":"   "}`, message: "Prompt is required and must be a non-empty string."},
		{body: `{"prompt":"` + strings.Repeat("x", 1001) + `"}`, message: "Prompt must be 1000 characters or less."},
		{body: `{"prompt":"a cat","image":"not base64!"}`, message: "Image must be a valid base64 encoded string."},
	}

	for _, tc := range cases {
		resp, body := s.do(request{method: fiber.MethodPost, path: "/api/generate", body: tc.body, userID: "user_1"})
		s.Equal(fiber.StatusBadRequest, resp.StatusCode)
		s.Equal(tc.message, body["error"])
	}

	s.Zero(s.balance("user_1"), "validation failures must not grant or consume credits")
}

func (s *APITestSuite) TestGenerate_GrantsBonusAndConsumesOnSuccess() {
	reference := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	s.generator.EXPECT().
		Generate(gomock.Any(), "user_1", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, prompt *models.ImagePrompt, requestID string) (string, error) {
			s.Equal("in watercolor style: a cat", prompt.Text)
			s.Equal([]byte("png-bytes"), prompt.Image)
			s.Equal("req-42", requestID)
			return "aW1hZ2U=", nil
		})

	resp, body := s.do(request{
		method:  fiber.MethodPost,
		path:    "/api/generate",
		body:    `{"prompt":"a cat","style":"watercolor","image":"` + reference + `"}`,
		userID:  "user_1",
		headers: map[string]string{middleware.RequestIDHeader: "req-42"},
	})

	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal(true, body["success"])
	s.Equal("aW1hZ2U=", body["image"])
	s.EqualValues(models.DefaultWelcomeBonusCredits-1, s.balance("user_1"))
}

func (s *APITestSuite) TestGenerate_NoCredits() {
	_, err := s.ledger.EnsureFreeCredits(s.ctx, "user_1")
	s.Require().NoError(err)
	for range models.DefaultWelcomeBonusCredits {
		ok, err := s.ledger.Consume(s.ctx, "user_1")
		s.Require().NoError(err)
		s.Require().True(ok)
	}

	resp, body := s.do(request{method: fiber.MethodPost, path: "/api/generate", body: `{"prompt":"a cat"}`, userID: "user_1"})

	s.Equal(fiber.StatusPaymentRequired, resp.StatusCode)
	s.Equal(models.CodeNoCredits, body["code"])
	s.Equal("No credits remaining. Please purchase more credits.", body["error"])
	s.Zero(s.balance("user_1"))
}

func (s *APITestSuite) TestGenerate_UpstreamFailureKeepsCredits() {
	cases := []struct {
		err    error
		status int
	}{
		{err: models.NewRateLimitError("Rate limit exceeded. Please try again later."), status: fiber.StatusTooManyRequests},
		{err: &models.AppError{Type: models.ErrorTypeTimeout, Message: "Request timed out. Please try again.", StatusCode: fiber.StatusGatewayTimeout}, status: fiber.StatusGatewayTimeout},
		{err: models.NewInternalError("No image was generated. Try a different prompt.", nil), status: fiber.StatusInternalServerError},
		{err: models.NewCircuitBreakerError("gemini"), status: fiber.StatusServiceUnavailable},
		{err: errors.New("socket closed"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		s.generator.EXPECT().Generate(gomock.Any(), "user_1", gomock.Any(), gomock.Any()).Return("", tc.err)

		resp, body := s.do(request{method: fiber.MethodPost, path: "/api/generate", body: `{"prompt":"a cat"}`, userID: "user_1"})
		s.Equal(tc.status, resp.StatusCode)
		s.Equal(false, body["success"])
	}

	s.EqualValues(models.DefaultWelcomeBonusCredits, s.balance("user_1"))
}

func (s *APITestSuite) TestBalance() {
	resp, _ := s.do(request{method: fiber.MethodGet, path: "/api/credits/balance"})
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)

	for range 2 {
		resp, body := s.do(request{method: fiber.MethodGet, path: "/api/credits/balance", userID: "user_1"})
		s.Equal(fiber.StatusOK, resp.StatusCode)
		s.EqualValues(models.DefaultWelcomeBonusCredits, body["credits"])
	}
}

func (s *APITestSuite) TestTransactions() {
	for i := 1; i <= 3; i++ {
		_, err := s.ledger.Grant(s.ctx, models.GrantParams{UserID: "user_1", Amount: int64(i)})
		s.Require().NoError(err)
	}

	resp, body := s.do(request{method: fiber.MethodGet, path: "/api/credits/transactions?limit=2", userID: "user_1"})
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.EqualValues(3, body["total"])
	s.EqualValues(2, body["limit"])
	s.Len(body["transactions"], 2)

	resp, body = s.do(request{method: fiber.MethodGet, path: "/api/credits/transactions?limit=500&offset=2", userID: "user_1"})
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.EqualValues(credits.MaxHistoryLimit, body["limit"])
	s.Len(body["transactions"], 1)
}

func (s *APITestSuite) TestCheckout() {
	resp, body := s.do(request{method: fiber.MethodPost, path: "/api/checkout", body: `{}`, userID: "user_1"})
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	s.Equal("planId is required", body["error"])

	s.checkout.EXPECT().
		CreateCheckout(gomock.Any(), payment.CheckoutParams{
			UserID:        "user_1",
			PlanID:        "starter",
			Origin:        "https://app.example",
			CustomerEmail: "user_1@example.com",
		}).
		Return(&payment.CheckoutResult{URL: "https://checkout.stripe.test/c/1", OrderNo: "ORD-1-ABCDEF"}, nil)

	resp, body = s.do(request{
		method:  fiber.MethodPost,
		path:    "/api/checkout",
		body:    `{"planId":"starter"}`,
		userID:  "user_1",
		headers: map[string]string{fiber.HeaderOrigin: "https://app.example"},
	})
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("https://checkout.stripe.test/c/1", body["url"])
	s.Equal("ORD-1-ABCDEF", body["order_no"])
}

func (s *APITestSuite) TestCheckout_Failures() {
	s.checkout.EXPECT().
		CreateCheckout(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params payment.CheckoutParams) (*payment.CheckoutResult, error) {
			s.Equal(testPublicURL, params.Origin)
			return nil, payment.ErrInvalidPlan
		})
	resp, body := s.do(request{method: fiber.MethodPost, path: "/api/checkout", body: `{"planId":"free"}`, userID: "user_1"})
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	s.Equal("Invalid plan", body["error"])

	s.checkout.EXPECT().CreateCheckout(gomock.Any(), gomock.Any()).Return(nil, errors.New("stripe down"))
	resp, body = s.do(request{method: fiber.MethodPost, path: "/api/checkout", body: `{"planId":"pro"}`, userID: "user_1"})
	s.Equal(fiber.StatusInternalServerError, resp.StatusCode)
	s.Equal("Checkout failed", body["error"])

	resp, _ = s.do(request{method: fiber.MethodPost, path: "/api/checkout", body: `{"planId":"pro"}`})
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func (s *APITestSuite) TestGetOrder_OwnerOnly() {
	s.Require().NoError(s.orders.Create(s.ctx, &models.PurchaseOrder{
		OrderNo:       "ORD-1-AAAAAA",
		UserID:        "user_1",
		Status:        models.OrderStatusPending,
		Amount:        999,
		Currency:      models.DefaultCurrency,
		PlanID:        "starter",
		CreditsAmount: 100,
	}))

	resp, body := s.do(request{method: fiber.MethodGet, path: "/api/orders/ORD-1-AAAAAA", userID: "user_1"})
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal(string(models.OrderStatusPending), body["status"])
	s.EqualValues(100, body["credits_amount"])

	resp, body = s.do(request{method: fiber.MethodGet, path: "/api/orders/ORD-1-AAAAAA", userID: "user_2"})
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	s.Equal("Order not found", body["error"])
}

func (s *APITestSuite) TestPricing() {
	resp, body := s.do(request{method: fiber.MethodGet, path: "/api/pricing"})

	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal(models.DefaultCurrency, body["currency"])
	s.Len(body["plans"], len(models.Plans))
}

func (s *APITestSuite) TestStripeWebhook_PassesRawBody() {
	payload := `{"id":"evt_1",  "type":"checkout.session.completed"}`
	s.webhooks.EXPECT().HandleWebhook(gomock.Any(), []byte(payload), "t=1,v1=abc").Return(nil)

	resp, body := s.do(request{
		method:  fiber.MethodPost,
		path:    "/api/webhooks/stripe",
		body:    payload,
		headers: map[string]string{"Stripe-Signature": "t=1,v1=abc"},
	})
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal(true, body["received"])
}

func (s *APITestSuite) TestStripeWebhook_ErrorStatuses() {
	cases := []struct {
		err    error
		status int
	}{
		{err: payment.ErrMissingSignature, status: fiber.StatusBadRequest},
		{err: payment.ErrInvalidSignature, status: fiber.StatusBadRequest},
		{err: payment.ErrInvalidMetadata, status: fiber.StatusBadRequest},
		{err: models.ErrOrderMismatch, status: fiber.StatusBadRequest},
		{err: payment.ErrWebhookNotConfigured, status: fiber.StatusInternalServerError},
		{err: models.ErrOrderNotFound, status: fiber.StatusNotFound},
		{err: errors.New("database is locked"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		s.webhooks.EXPECT().HandleWebhook(gomock.Any(), gomock.Any(), gomock.Any()).Return(tc.err)

		resp, body := s.do(request{method: fiber.MethodPost, path: "/api/webhooks/stripe", body: `{}`})
		s.Equal(tc.status, resp.StatusCode, tc.err.Error())
		s.Equal(false, body["success"])
	}
}

func (s *APITestSuite) clerkEvent(id, payload string) map[string]string {
	wh, err := svix.NewWebhook(testClerkSecret)
	s.Require().NoError(err)

	now := time.Now()
	signature, err := wh.Sign(id, now, []byte(payload))
	s.Require().NoError(err)

	return map[string]string{
		"svix-id":        id,
		"svix-timestamp": strconv.FormatInt(now.Unix(), 10),
		"svix-signature": signature,
	}
}

func (s *APITestSuite) TestClerkWebhook_UserCreatedGrantsBonusOnce() {
	payload := `{"type":"user.created","data":{"id":"user_new"}}`

	for _, id := range []string{"msg_1", "msg_2"} {
		resp, body := s.do(request{
			method:  fiber.MethodPost,
			path:    "/api/webhooks/clerk",
			body:    payload,
			headers: s.clerkEvent(id, payload),
		})
		s.Equal(fiber.StatusOK, resp.StatusCode)
		s.Equal(true, body["received"])
	}

	s.EqualValues(models.DefaultWelcomeBonusCredits, s.balance("user_new"))
}

func (s *APITestSuite) TestClerkWebhook_RejectsBadSignature() {
	payload := `{"type":"user.created","data":{"id":"user_new"}}`
	headers := s.clerkEvent("msg_1", payload)

	resp, _ := s.do(request{
		method:  fiber.MethodPost,
		path:    "/api/webhooks/clerk",
		body:    strings.Replace(payload, "user_new", "user_evil", 1),
		headers: headers,
	})
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
	s.Zero(s.balance("user_evil"))
}

func (s *APITestSuite) TestHealth() {
	resp, body := s.do(request{method: fiber.MethodGet, path: "/health"})

	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("healthy", body["status"])
	checks, ok := body["checks"].(map[string]any)
	s.Require().True(ok)
	s.Equal("healthy", checks["database"])
	s.Equal("disabled", checks["redis"])
}
