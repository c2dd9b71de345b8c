package public

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pawpledge/internal/authz"
	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"
	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/payment/stripe"
	"github.com/pawpledge/internal/provider"
	"github.com/pawpledge/internal/repository"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testWebhookSecret = "whsec_handler_test"
	testUserHeader    = "X-Test-User"
	testRoleHeader    = "X-Test-Role"
)

type webhookSecretParser struct{}

func (webhookSecretParser) ParseWebhook(body []byte, signatureHeader string) (*stripe.WebhookEvent, error) {
	return stripe.ParseWebhook(testWebhookSecret, body, signatureHeader)
}

type sessionCheckout struct {
	sessions int
}

func (s *sessionCheckout) Currency() string { return constants.DefaultCurrency }

func (s *sessionCheckout) CreateCheckoutSession(ctx context.Context, input stripe.CheckoutInput) (*stripe.CheckoutResult, error) {
	s.sessions++
	id := "sess_abc"
	if s.sessions > 1 {
		id = fmt.Sprintf("sess_abc_%d", s.sessions)
	}
	return &stripe.CheckoutResult{SessionID: id, URL: "https://checkout.stripe.test/c/" + id}, nil
}

type handlerFixture struct {
	db     *gorm.DB
	engine *gin.Engine
	stripe *sessionCheckout
}

func setupHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:public_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.MigrateDB(db))
	models.DB = db

	authzService, err := authz.NewService(db)
	require.NoError(t, err)
	require.NoError(t, authzService.BootstrapBuiltinRoles())

	intentRepo := repository.NewPaymentIntentRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	ledgerRepo := repository.NewPledgePaymentRepository(db)
	animalService := service.NewAnimalService(repository.NewAnimalRepository(db))
	checkout := &sessionCheckout{}

	c := &provider.Container{
		Config:              &config.Config{},
		UserRepo:            repository.NewUserRepository(db),
		PaymentIntentRepo:   intentRepo,
		SubscriptionRepo:    subscriptionRepo,
		PledgePaymentRepo:   ledgerRepo,
		AuthzService:        authzService,
		AnimalService:       animalService,
		SubscriptionService: service.NewSubscriptionService(subscriptionRepo, animalService, constants.DefaultCurrency),
		CheckoutService:     service.NewCheckoutService(intentRepo, animalService, checkout, nil, decimal.NewFromInt(100)),
		ReconcileService: service.NewReconcileService(service.ReconcileDeps{
			DB:               db,
			IntentRepo:       intentRepo,
			SubscriptionRepo: subscriptionRepo,
			LedgerRepo:       ledgerRepo,
			WebhookRepo:      repository.NewWebhookEventRepository(db),
			Stripe:           webhookSecretParser{},
			Return:           config.ReturnConfig{FrontendURL: "https://pawpledge.test", ResultPath: "/donate/result"},
		}),
	}
	h := New(c)

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/animals", h.ListAnimals)
	api.GET("/animals/:id", h.GetAnimal)
	api.POST("/checkout/stripe", h.CreateStripeCheckout)
	api.POST("/checkout/gateway", h.CreateGatewayCheckout)
	api.POST("/payments/webhook/stripe", h.StripeWebhook)
	api.GET("/payments/return/stripe", h.StripeReturn)

	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(testIdentityMiddleware)
	subscriptions.POST("", h.CreateSubscription)
	subscriptions.GET("", h.ListSubscriptions)
	subscriptions.GET("/active", h.ListActiveSponsorships)
	subscriptions.GET("/:id", h.GetSubscription)
	subscriptions.PATCH("/:id/cancel", h.CancelSubscription)

	f := &handlerFixture{db: db, engine: r, stripe: checkout}
	f.seedAnimal(t, "dog-42", constants.AnimalStatusActive)
	return f
}

// testIdentityMiddleware 以请求头模拟鉴权结果
func testIdentityMiddleware(c *gin.Context) {
	if raw := c.GetHeader(testUserHeader); raw != "" {
		id, _ := strconv.ParseUint(raw, 10, 64)
		c.Set(handlershared.ContextKeyUserID, uint(id))
	}
	role := c.GetHeader(testRoleHeader)
	if role == "" {
		role = constants.RoleUser
	}
	c.Set(handlershared.ContextKeyRole, role)
	c.Next()
}

func (f *handlerFixture) seedAnimal(t *testing.T, id, status string) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Animal{ID: id, Name: "Rex", Species: "dog", Status: status}).Error)
}

func (f *handlerFixture) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func asUser(id uint, role string) map[string]string {
	return map[string]string{testUserHeader: strconv.FormatUint(uint64(id), 10), testRoleHeader: role}
}

func signStripeBody(body []byte) string {
	now := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", now, body)))
	return fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestCheckoutRejectsUnknownFields(t *testing.T) {
	f := setupHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/checkout/stripe", `{"animalId":"dog-42","amountInMajorUnits":500,"coupon":"FREE"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Msg, "coupon")
	assert.Zero(t, f.stripe.sessions)
}

func TestCheckoutValidationErrors(t *testing.T) {
	f := setupHandlerFixture(t)
	f.seedAnimal(t, "cat-7", constants.AnimalStatusInactive)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing animal", body: `{"amountInMajorUnits":500}`, want: http.StatusBadRequest},
		{name: "bad email", body: `{"animalId":"dog-42","amountInMajorUnits":500,"email":"nope"}`, want: http.StatusBadRequest},
		{name: "zero amount", body: `{"animalId":"dog-42","amountInMajorUnits":0}`, want: http.StatusBadRequest},
		{name: "inactive animal", body: `{"animalId":"cat-7","amountInMajorUnits":500}`, want: http.StatusBadRequest},
		{name: "unknown animal", body: `{"animalId":"owl-1","amountInMajorUnits":500}`, want: http.StatusNotFound},
		{name: "trailing data", body: `{"animalId":"dog-42","amountInMajorUnits":500}{}`, want: http.StatusBadRequest},
		{name: "three decimals", body: `{"animalId":"dog-42","amountInMajorUnits":"100.005"}`, want: http.StatusBadRequest},
		{name: "overflowing amount", body: `{"animalId":"dog-42","amountInMajorUnits":"184467440737095516.17"}`, want: http.StatusBadRequest},
		{name: "above maximum", body: `{"animalId":"dog-42","amountInMajorUnits":1000001}`, want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/checkout/stripe", tc.body, nil)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
	assert.Zero(t, f.stripe.sessions)
}

func TestGatewayCheckoutUnavailable(t *testing.T) {
	f := setupHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/checkout/gateway", `{"animalId":"dog-42","amountInMajorUnits":500}`, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "payment provider is not available", decodeEnvelope(t, w).Msg)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	f := setupHandlerFixture(t)
	body := `{"type":"checkout.session.completed","client_reference_id":"dog-42","amount_total":50000,"id":"sess_abc"}`

	w := f.do(t, http.MethodPost, "/api/v1/payments/webhook/stripe", body, map[string]string{
		stripe.SignatureHeader: "t=1,v1=deadbeef",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])
	var count int64
	require.NoError(t, f.db.Model(&models.PaymentIntent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStripeWebhookRejectsOversizedBody(t *testing.T) {
	f := setupHandlerFixture(t)
	padding := strings.Repeat("x", maxWebhookBodyBytes)
	body := []byte(`{"type":"checkout.session.completed","pad":"` + padding + `"}`)

	w := f.do(t, http.MethodPost, "/api/v1/payments/webhook/stripe", string(body), map[string]string{
		stripe.SignatureHeader: signStripeBody(body),
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request body too large")
	var count int64
	require.NoError(t, f.db.Model(&models.PaymentIntent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDonationFlowOverHTTP(t *testing.T) {
	f := setupHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/checkout/stripe", `{"animalId":"dog-42","amountInMajorUnits":500,"email":"donor@pawpledge.test"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var started service.CheckoutResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &started))
	assert.Equal(t, "sess_abc", started.OrderID)
	assert.Equal(t, "https://checkout.stripe.test/c/sess_abc", started.URL)

	w = f.do(t, http.MethodGet, "/api/v1/payments/return/stripe?session_id=sess_abc", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "status=pending")

	body := []byte(`{"type":"checkout.session.completed","client_reference_id":"dog-42","amount_total":50000,"id":"sess_abc"}`)
	for i := 0; i < 2; i++ {
		w = f.do(t, http.MethodPost, "/api/v1/payments/webhook/stripe", string(body), map[string]string{
			stripe.SignatureHeader: signStripeBody(body),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"received":true}`, w.Body.String())
	}

	var intent models.PaymentIntent
	require.NoError(t, f.db.Where("provider = ? AND provider_order_id = ?", constants.PaymentProviderStripe, "sess_abc").First(&intent).Error)
	assert.Equal(t, constants.PaymentStatusPaid, intent.Status)
	assert.True(t, intent.Amount.Equal(decimal.NewFromInt(500)))
	var ledger int64
	require.NoError(t, f.db.Model(&models.PledgePayment{}).Count(&ledger).Error)
	assert.Equal(t, int64(1), ledger)

	w = f.do(t, http.MethodGet, "/api/v1/payments/return/stripe?session_id=sess_abc", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "pawpledge.test", location.Host)
	assert.Equal(t, "/donate/result", location.Path)
	assert.Equal(t, constants.ReturnStatusSuccess, location.Query().Get("status"))
	assert.Equal(t, "sess_abc", location.Query().Get("order"))
}

func TestStripeReturnWithoutSessionRedirectsFailed(t *testing.T) {
	f := setupHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/payments/return/stripe", "", nil)

	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasSuffix(w.Header().Get("Location"), "status=failed"), w.Header().Get("Location"))
}

func TestAnimalEndpoints(t *testing.T) {
	f := setupHandlerFixture(t)
	f.seedAnimal(t, "cat-7", constants.AnimalStatusInactive)

	w := f.do(t, http.MethodGet, "/api/v1/animals", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var animals []models.Animal
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &animals))
	require.Len(t, animals, 1)
	assert.Equal(t, "dog-42", animals[0].ID)

	w = f.do(t, http.MethodGet, "/api/v1/animals/dog-42", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/animals/owl-1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func createBankTransferSubscription(t *testing.T, f *handlerFixture, userID uint) uint {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/subscriptions", `{"animalId":"dog-42","monthlyAmount":"25.00","method":"bank_transfer"}`, asUser(userID, constants.RoleUser))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created CreateSubscriptionResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &created))
	require.NotNil(t, created.Subscription)
	assert.Equal(t, constants.SubscriptionStatusActive, created.Subscription.Status)
	assert.Empty(t, created.URL)
	return created.Subscription.ID
}

func TestSubscriptionOwnershipAndCancel(t *testing.T) {
	f := setupHandlerFixture(t)
	id := createBankTransferSubscription(t, f, 1)
	path := fmt.Sprintf("/api/v1/subscriptions/%d", id)

	w := f.do(t, http.MethodGet, path, "", asUser(2, constants.RoleUser))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodPatch, path+"/cancel", "", asUser(2, constants.RoleUser))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, path, "", asUser(1, constants.RoleUser))
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPatch, path+"/cancel", "", asUser(1, constants.RoleUser))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var canceled models.Subscription
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &canceled))
	assert.Equal(t, constants.SubscriptionStatusCanceled, canceled.Status)

	w = f.do(t, http.MethodPatch, path+"/cancel", "", asUser(1, constants.RoleUser))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubscriptionRoleOverride(t *testing.T) {
	f := setupHandlerFixture(t)
	id := createBankTransferSubscription(t, f, 1)
	path := fmt.Sprintf("/api/v1/subscriptions/%d", id)

	w := f.do(t, http.MethodGet, path, "", asUser(5, constants.RoleModerator))
	assert.Equal(t, http.StatusOK, w.Code, "moderator can read any subscription")
	w = f.do(t, http.MethodPatch, path+"/cancel", "", asUser(5, constants.RoleModerator))
	assert.Equal(t, http.StatusNotFound, w.Code, "moderator cannot cancel others")

	w = f.do(t, http.MethodPatch, path+"/cancel", "", asUser(9, constants.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSubscriptionListsForCaller(t *testing.T) {
	f := setupHandlerFixture(t)
	createBankTransferSubscription(t, f, 1)
	createBankTransferSubscription(t, f, 2)

	w := f.do(t, http.MethodGet, "/api/v1/subscriptions?page=1&page_size=10", "", asUser(1, constants.RoleUser))
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data       []models.Subscription `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Pagination.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, uint(1), page.Data[0].UserID)

	w = f.do(t, http.MethodGet, "/api/v1/subscriptions/active", "", asUser(1, constants.RoleUser))
	require.Equal(t, http.StatusOK, w.Code)
	var active []service.ActiveSponsorship
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &active))
	assert.Len(t, active, 1)
}

func TestSubscriptionRequiresIdentity(t *testing.T) {
	f := setupHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/subscriptions", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscriptionRejectsUnknownMethod(t *testing.T) {
	f := setupHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/subscriptions", `{"animalId":"dog-42","monthlyAmount":"25.00","method":"cash"}`, asUser(1, constants.RoleUser))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeEnvelope(t, w).Msg, "method")
}

func TestSubscriptionRejectsOverPreciseAmount(t *testing.T) {
	f := setupHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/subscriptions", `{"animalId":"dog-42","monthlyAmount":"25.005","method":"bank_transfer"}`, asUser(1, constants.RoleUser))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeEnvelope(t, w).Msg, "decimal places")
}
