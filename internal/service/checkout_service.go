package service

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/payment/gateway"
	"github.com/pawpledge/internal/payment/stripe"
	"github.com/pawpledge/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const gatewayOrderNumberAttempts = 3

// StripeCheckout 托管收银台能力
type StripeCheckout interface {
	Currency() string
	CreateCheckoutSession(ctx context.Context, input stripe.CheckoutInput) (*stripe.CheckoutResult, error)
}

// GatewayRedirector 银行卡网关跳转能力
type GatewayRedirector interface {
	Currency() string
	NewOrderNumber() (string, error)
	Intent(orderNumber string, amountMinor int64, description, merchantData string) gateway.RedirectIntent
	BuildRedirectURL(intent gateway.RedirectIntent) (string, error)
}

// CheckoutService 发起单次或月度资助支付
type CheckoutService struct {
	intentRepo       repository.PaymentIntentRepository
	animalSvc        *AnimalService
	stripe           StripeCheckout
	gateway          GatewayRedirector
	gatewayMinAmount decimal.Decimal
}

// NewCheckoutService 创建支付发起服务，未配置的提供方传 nil
func NewCheckoutService(intentRepo repository.PaymentIntentRepository, animalSvc *AnimalService, stripeClient StripeCheckout, gatewayClient GatewayRedirector, gatewayMinAmount decimal.Decimal) *CheckoutService {
	return &CheckoutService{
		intentRepo:       intentRepo,
		animalSvc:        animalSvc,
		stripe:           stripeClient,
		gateway:          gatewayClient,
		gatewayMinAmount: gatewayMinAmount,
	}
}

// CheckoutInput 发起支付输入，金额为主货币单位
type CheckoutInput struct {
	AnimalID string
	Amount   models.Money
	Email    string
	Name     string
}

// CheckoutResult 发起支付结果
type CheckoutResult struct {
	URL      string `json:"url"`
	OrderID  string `json:"order_id"`
	IntentID uint   `json:"-"`
}

// StartStripeCheckout 创建 Stripe 单次资助会话
func (s *CheckoutService) StartStripeCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if s.stripe == nil {
		return nil, ErrProviderUnavailable
	}
	animal, email, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	currency := s.stripe.Currency()
	minor, err := pledgeMinorUnits(input.Amount, currency)
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		AnimalID:    animal.ID,
		PayerEmail:  email,
		PayerName:   strings.TrimSpace(input.Name),
		Amount:      input.Amount,
		AmountMinor: minor,
		Currency:    currency,
		Provider:    constants.PaymentProviderStripe,
		Status:      constants.PaymentStatusCreated,
	}
	if err := s.intentRepo.Create(intent); err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	return s.openStripeSession(ctx, intent, stripe.CheckoutInput{
		Mode:            stripe.ModePayment,
		PaymentIntentID: intent.ID,
		AnimalID:        animal.ID,
		Description:     sponsorshipDescription(animal),
		AmountMinor:     minor,
		Currency:        currency,
		Email:           email,
	})
}

// StartSubscriptionCheckout 为待生效的月度资助创建 Stripe 订阅会话
func (s *CheckoutService) StartSubscriptionCheckout(ctx context.Context, subscription *models.Subscription, email string) (*CheckoutResult, error) {
	if s.stripe == nil {
		return nil, ErrProviderUnavailable
	}
	if subscription == nil {
		return nil, ErrSubscriptionNotFound
	}
	if subscription.Status == constants.SubscriptionStatusCanceled {
		return nil, ErrSubscriptionCanceled
	}
	animal, err := s.animalSvc.GetActive(ctx, subscription.AnimalID)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	currency := subscription.Currency
	if currency == "" {
		currency = s.stripe.Currency()
	}
	minor, err := pledgeMinorUnits(subscription.MonthlyAmount, currency)
	if err != nil {
		return nil, err
	}
	subscriptionID := subscription.ID
	intent := &models.PaymentIntent{
		AnimalID:       animal.ID,
		PayerEmail:     email,
		Amount:         subscription.MonthlyAmount,
		AmountMinor:    minor,
		Currency:       currency,
		Provider:       constants.PaymentProviderStripe,
		Status:         constants.PaymentStatusCreated,
		SubscriptionID: &subscriptionID,
	}
	if err := s.intentRepo.Create(intent); err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	return s.openStripeSession(ctx, intent, stripe.CheckoutInput{
		Mode:            stripe.ModeSubscription,
		PaymentIntentID: intent.ID,
		SubscriptionID:  subscription.ID,
		AnimalID:        animal.ID,
		Description:     "Monthly " + sponsorshipDescription(animal),
		AmountMinor:     minor,
		Currency:        currency,
		Email:           email,
	})
}

// StartGatewayCheckout 创建银行卡网关跳转地址
func (s *CheckoutService) StartGatewayCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if s.gateway == nil {
		return nil, ErrProviderUnavailable
	}
	animal, email, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	if input.Amount.Decimal.LessThan(s.gatewayMinAmount) {
		return nil, ErrAmountBelowMinimum.Wrapf("minimum is %s", s.gatewayMinAmount.StringFixed(2))
	}
	currency := s.gateway.Currency()
	if _, ok := gateway.CurrencyNumericCode(currency); !ok {
		return nil, ErrCurrencyUnsupported
	}
	minor, err := pledgeMinorUnits(input.Amount, currency)
	if err != nil {
		return nil, err
	}

	var intent *models.PaymentIntent
	var lastErr error
	for attempt := 0; attempt < gatewayOrderNumberAttempts; attempt++ {
		orderNumber, err := s.gateway.NewOrderNumber()
		if err != nil {
			return nil, ErrProviderRequest.Wrap(err)
		}
		candidate := &models.PaymentIntent{
			AnimalID:        animal.ID,
			PayerEmail:      email,
			PayerName:       strings.TrimSpace(input.Name),
			Amount:          input.Amount,
			AmountMinor:     minor,
			Currency:        currency,
			Provider:        constants.PaymentProviderGateway,
			ProviderOrderID: &orderNumber,
			Status:          constants.PaymentStatusPending,
		}
		if lastErr = s.intentRepo.Create(candidate); lastErr == nil {
			intent = candidate
			break
		}
		logger.Warnw("gateway_order_number_persist_failed", "attempt", attempt+1, "error", lastErr)
	}
	if intent == nil {
		return nil, ErrPersistFailed.Wrap(lastErr)
	}

	redirect := s.gateway.Intent(intent.OrderID(), minor, sponsorshipDescription(animal), strconv.FormatUint(uint64(intent.ID), 10))
	redirectURL, err := s.gateway.BuildRedirectURL(redirect)
	if err != nil {
		s.markFailed(intent.ID, "gateway_redirect_build_failed", err)
		return nil, ErrProviderRequest.Wrap(err)
	}
	logger.Infow("gateway_checkout_started",
		"intent_id", intent.ID,
		"order_id", intent.OrderID(),
		"animal_id", animal.ID,
		"amount_minor", minor,
	)
	return &CheckoutResult{URL: redirectURL, OrderID: intent.OrderID(), IntentID: intent.ID}, nil
}

func (s *CheckoutService) prepare(ctx context.Context, input CheckoutInput) (*models.Animal, string, error) {
	if !input.Amount.IsPositive() {
		return nil, "", ErrInvalidAmount
	}
	email := strings.TrimSpace(input.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, "", ErrInvalidEmail
		}
	}
	animal, err := s.animalSvc.GetActive(ctx, input.AnimalID)
	if err != nil {
		return nil, "", err
	}
	return animal, email, nil
}

func (s *CheckoutService) openStripeSession(ctx context.Context, intent *models.PaymentIntent, input stripe.CheckoutInput) (*CheckoutResult, error) {
	input.IdempotencyKey = intentIdempotencyKey(intent.ID)
	session, err := s.stripe.CreateCheckoutSession(ctx, input)
	if err != nil {
		s.markFailed(intent.ID, "stripe_checkout_create_failed", err)
		return nil, ErrProviderRequest.Wrap(err)
	}
	assigned, err := s.intentRepo.AssignProviderOrder(intent.ID, session.SessionID, map[string]interface{}{
		"status":     constants.PaymentStatusPending,
		"updated_at": time.Now(),
	})
	if err != nil || !assigned {
		logger.Warnw("stripe_checkout_session_bind_failed",
			"intent_id", intent.ID,
			"session_id", session.SessionID,
			"error", err,
		)
	}
	logger.Infow("stripe_checkout_started",
		"intent_id", intent.ID,
		"session_id", session.SessionID,
		"animal_id", intent.AnimalID,
		"mode", string(input.Mode),
	)
	return &CheckoutResult{URL: session.URL, OrderID: session.SessionID, IntentID: intent.ID}, nil
}

func (s *CheckoutService) markFailed(intentID uint, event string, cause error) {
	logger.Errorw(event, "intent_id", intentID, "error", cause)
	if _, err := s.intentRepo.TransitionStatus(intentID, map[string]interface{}{
		"status":     constants.PaymentStatusFailed,
		"updated_at": time.Now(),
	}); err != nil {
		logger.Errorw("payment_intent_mark_failed_error", "intent_id", intentID, "error", err)
	}
}

func intentIdempotencyKey(intentID uint) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("pawpledge:payment_intent:%d", intentID))).String()
}

func sponsorshipDescription(animal *models.Animal) string {
	name := strings.TrimSpace(animal.Name)
	if name == "" {
		name = animal.ID
	}
	return "Sponsorship for " + name
}
