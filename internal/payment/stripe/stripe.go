package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pawpledge/internal/constants"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

var (
	ErrConfigInvalid    = errors.New("stripe config invalid")
	ErrInputInvalid     = errors.New("stripe checkout input invalid")
	ErrRequestFailed    = errors.New("stripe request failed")
	ErrSignatureInvalid = errors.New("stripe signature invalid")
	ErrPayloadInvalid   = errors.New("stripe payload invalid")
)

const (
	defaultTimeout = 12 * time.Second

	// SessionIDPlaceholder Stripe 在跳转时替换为真实会话 ID
	SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

	MetadataPaymentIntentID = "payment_intent_id"
	MetadataAnimalID        = "animal_id"
	MetadataSubscriptionID  = "subscription_id"
)

// Mode 收银台模式
type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
)

// Config Stripe 托管收银台配置
type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
	Timeout       time.Duration
	// APIBaseURL 为空时使用官方地址
	APIBaseURL string
}

// CheckoutInput 创建收银台会话输入
type CheckoutInput struct {
	Mode            Mode
	PaymentIntentID uint
	SubscriptionID  uint
	AnimalID        string
	Description     string
	AmountMinor     int64
	Currency        string
	Email           string
	IdempotencyKey  string
}

// CheckoutResult 收银台会话
type CheckoutResult struct {
	SessionID string
	URL       string
	Status    string
}

// Client Stripe 客户端
type Client struct {
	api *client.API
	cfg Config
}

// ValidateConfig 校验配置
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(sanitizeURLForValidation(cfg.SuccessURL)); err != nil {
		return fmt.Errorf("%w: success_url is invalid", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(sanitizeURLForValidation(cfg.CancelURL)); err != nil {
		return fmt.Errorf("%w: cancel_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// NewClient 创建 Stripe 客户端
func NewClient(cfg Config) (*Client, error) {
	cfg.normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	backendConfig := &stripeapi.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripeapi.Int64(1),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelNull},
	}
	if cfg.APIBaseURL != "" {
		backendConfig.URL = stripeapi.String(cfg.APIBaseURL)
	}
	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendConfig),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, backendConfig),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, backendConfig),
	}
	return &Client{api: client.New(cfg.SecretKey, backends), cfg: cfg}, nil
}

// Currency 默认结算币种
func (c *Client) Currency() string {
	return c.cfg.Currency
}

// CreateCheckoutSession 创建 Stripe Checkout Session
func (c *Client) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInputInvalid)
	}
	animalID := strings.TrimSpace(input.AnimalID)
	if animalID == "" {
		return nil, fmt.Errorf("%w: animal_id is required", ErrInputInvalid)
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = strings.ToLower(c.cfg.Currency)
	}
	mode := input.Mode
	if mode == "" {
		mode = ModePayment
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = "Sponsorship " + animalID
	}

	priceData := &stripeapi.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripeapi.String(currency),
		UnitAmount: stripeapi.Int64(input.AmountMinor),
		ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripeapi.String(description),
		},
	}
	if mode == ModeSubscription {
		priceData.Recurring = &stripeapi.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripeapi.String(string(stripeapi.PriceRecurringIntervalMonth)),
		}
	}

	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(mode)),
		ClientReferenceID: stripeapi.String(animalID),
		SuccessURL:        stripeapi.String(c.cfg.SuccessURL),
		CancelURL:         stripeapi.String(c.cfg.CancelURL),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{PriceData: priceData, Quantity: stripeapi.Int64(1)},
		},
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		params.CustomerEmail = stripeapi.String(email)
	}
	params.Context = ctx
	params.AddMetadata(MetadataAnimalID, animalID)
	if input.PaymentIntentID > 0 {
		params.AddMetadata(MetadataPaymentIntentID, strconv.FormatUint(uint64(input.PaymentIntentID), 10))
	}
	if input.SubscriptionID > 0 {
		subscriptionID := strconv.FormatUint(uint64(input.SubscriptionID), 10)
		params.AddMetadata(MetadataSubscriptionID, subscriptionID)
		params.SubscriptionData = &stripeapi.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataSubscriptionID: subscriptionID,
				MetadataAnimalID:       animalID,
			},
		}
	}
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if session == nil || strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.URL) == "" {
		return nil, fmt.Errorf("%w: empty session", ErrRequestFailed)
	}
	return &CheckoutResult{
		SessionID: session.ID,
		URL:       session.URL,
		Status:    constants.PaymentStatusPending,
	}, nil
}

func (c *Config) normalize() {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.SuccessURL = withSessionPlaceholder(strings.TrimSpace(c.SuccessURL))
	c.CancelURL = strings.TrimSpace(c.CancelURL)
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = constants.DefaultCurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
}

// withSessionPlaceholder 保证成功跳转地址携带 session_id
func withSessionPlaceholder(raw string) string {
	if raw == "" || strings.Contains(raw, SessionIDPlaceholder) {
		return raw
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "session_id=" + SessionIDPlaceholder
}

func sanitizeURLForValidation(rawURL string) string {
	return strings.ReplaceAll(strings.TrimSpace(rawURL), SessionIDPlaceholder, "placeholder")
}
