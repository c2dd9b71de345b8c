package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/payment/gateway"
	"github.com/pawpledge/internal/payment/stripe"
	"github.com/pawpledge/internal/queue"
	"github.com/pawpledge/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_service_test"

type serviceFixture struct {
	db               *gorm.DB
	intentRepo       *repository.GormPaymentIntentRepository
	subscriptionRepo *repository.GormSubscriptionRepository
	ledgerRepo       *repository.GormPledgePaymentRepository
	webhookRepo      *repository.GormWebhookEventRepository
	animalRepo       *repository.GormAnimalRepository
	userRepo         *repository.GormUserRepository
	animalSvc        *AnimalService
	tasks            *fakeTaskQueue
	gateway          *fakeGatewayVerifier
	reconcile        *ReconcileService
}

func setupServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	f := &serviceFixture{
		db:               db,
		intentRepo:       repository.NewPaymentIntentRepository(db),
		subscriptionRepo: repository.NewSubscriptionRepository(db),
		ledgerRepo:       repository.NewPledgePaymentRepository(db),
		webhookRepo:      repository.NewWebhookEventRepository(db),
		animalRepo:       repository.NewAnimalRepository(db),
		userRepo:         repository.NewUserRepository(db),
		tasks:            &fakeTaskQueue{},
		gateway:          &fakeGatewayVerifier{},
	}
	f.animalSvc = NewAnimalService(f.animalRepo)
	f.reconcile = NewReconcileService(ReconcileDeps{
		DB:               db,
		IntentRepo:       f.intentRepo,
		SubscriptionRepo: f.subscriptionRepo,
		LedgerRepo:       f.ledgerRepo,
		WebhookRepo:      f.webhookRepo,
		Stripe:           secretWebhookParser{secret: testWebhookSecret},
		Gateway:          f.gateway,
		Tasks:            f.tasks,
		Return:           config.ReturnConfig{FrontendURL: "https://pawpledge.test", ResultPath: "/donate/result"},
	})
	return f
}

func (f *serviceFixture) seedAnimal(t *testing.T, id, status string) *models.Animal {
	t.Helper()
	animal := &models.Animal{ID: id, Name: "Rex", Species: "dog", Status: status}
	if err := f.db.Create(animal).Error; err != nil {
		t.Fatalf("create animal failed: %v", err)
	}
	return animal
}

func (f *serviceFixture) ledgerCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&models.PledgePayment{}).Count(&count).Error; err != nil {
		t.Fatalf("count ledger failed: %v", err)
	}
	return count
}

func (f *serviceFixture) intentByOrder(t *testing.T, provider, orderID string) *models.PaymentIntent {
	t.Helper()
	intent, err := f.intentRepo.GetByProviderOrder(provider, orderID)
	if err != nil {
		t.Fatalf("load intent failed: %v", err)
	}
	return intent
}

func signStripePayload(body []byte) string {
	now := time.Now()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", now.Unix(), body)))
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

type secretWebhookParser struct {
	secret string
}

func (p secretWebhookParser) ParseWebhook(body []byte, signatureHeader string) (*stripe.WebhookEvent, error) {
	return stripe.ParseWebhook(p.secret, body, signatureHeader)
}

type fakeGatewayVerifier struct {
	result *gateway.CallbackResult
	err    error
}

func (f *fakeGatewayVerifier) VerifyCallback(values url.Values) (*gateway.CallbackResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTaskQueue struct {
	confirmations []queue.PaymentConfirmationPayload
	archives      []queue.PayloadArchivePayload
}

func (f *fakeTaskQueue) EnqueuePaymentConfirmation(payload queue.PaymentConfirmationPayload, opts ...asynq.Option) error {
	f.confirmations = append(f.confirmations, payload)
	return nil
}

func (f *fakeTaskQueue) EnqueuePayloadArchive(payload queue.PayloadArchivePayload, opts ...asynq.Option) error {
	f.archives = append(f.archives, payload)
	return nil
}

type fakeStripeCheckout struct {
	currency string
	result   *stripe.CheckoutResult
	err      error
	inputs   []stripe.CheckoutInput
}

func (f *fakeStripeCheckout) Currency() string {
	if f.currency == "" {
		return constants.DefaultCurrency
	}
	return f.currency
}

func (f *fakeStripeCheckout) CreateCheckoutSession(ctx context.Context, input stripe.CheckoutInput) (*stripe.CheckoutResult, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeGatewayRedirector struct {
	currency string
	orders   []string
	intents  []gateway.RedirectIntent
}

func (f *fakeGatewayRedirector) Currency() string {
	if f.currency == "" {
		return constants.DefaultCurrency
	}
	return f.currency
}

func (f *fakeGatewayRedirector) NewOrderNumber() (string, error) {
	order := fmt.Sprintf("%015d", len(f.orders)+1)
	f.orders = append(f.orders, order)
	return order, nil
}

func (f *fakeGatewayRedirector) Intent(orderNumber string, amountMinor int64, description, merchantData string) gateway.RedirectIntent {
	return gateway.RedirectIntent{
		OrderNumber:      orderNumber,
		AmountMinorUnits: amountMinor,
		Currency:         f.Currency(),
		Description:      description,
		MerchantData:     merchantData,
	}
}

func (f *fakeGatewayRedirector) BuildRedirectURL(intent gateway.RedirectIntent) (string, error) {
	f.intents = append(f.intents, intent)
	return "https://gateway.test/pay?ORDERNUMBER=" + intent.OrderNumber, nil
}
