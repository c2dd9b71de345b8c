package stripe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pawpledge/internal/constants"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// SignatureHeader Stripe 回调签名头
const SignatureHeader = "Stripe-Signature"

const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed        = "checkout.session.async_payment_failed"
	EventCheckoutExpired            = "checkout.session.expired"
	EventInvoicePaid                = "invoice.paid"
	EventCustomerSubscriptionDelete = "customer.subscription.deleted"
)

// EventKind 归一化后的事件类别
type EventKind string

// BillingReasonSubscriptionCreate 订阅首期账单，首款由会话事件入账
const BillingReasonSubscriptionCreate = "subscription_create"

const (
	EventKindCheckout             EventKind = "checkout"
	EventKindRenewal              EventKind = "renewal"
	EventKindSubscriptionCanceled EventKind = "subscription_canceled"
	EventKindIgnored              EventKind = "ignored"
)

// WebhookEvent 归一化的 Stripe 回调
type WebhookEvent struct {
	EventID   string
	EventType string
	Kind      EventKind
	// OrderID 会话事件为 session id，续费事件为 invoice id
	OrderID         string
	AnimalID        string
	AmountMinor     int64
	Currency        string
	Status          string
	Email           string
	Name            string
	SubscriptionRef string
	// BillingReason 仅续费事件使用
	BillingReason string
	Metadata      map[string]string
	Raw           []byte
}

// PaymentIntentID 元数据中的本地支付单 ID
func (e *WebhookEvent) PaymentIntentID() uint {
	return parseMetadataID(e.Metadata, MetadataPaymentIntentID)
}

// SubscriptionID 元数据中的本地订阅 ID
func (e *WebhookEvent) SubscriptionID() uint {
	return parseMetadataID(e.Metadata, MetadataSubscriptionID)
}

// ParseWebhook 校验签名并解析 Stripe 回调
func (c *Client) ParseWebhook(body []byte, signatureHeader string) (*WebhookEvent, error) {
	return ParseWebhook(c.cfg.WebhookSecret, body, signatureHeader)
}

// ParseWebhook 校验签名并解析 Stripe 回调
func ParseWebhook(secret string, body []byte, signatureHeader string) (*WebhookEvent, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: webhook secret missing", ErrConfigInvalid)
	}
	event, err := webhook.ConstructEventWithOptions(body, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	objectRaw := body
	if event.Data != nil && len(event.Data.Raw) > 0 {
		objectRaw = event.Data.Raw
	}
	result := &WebhookEvent{
		EventID:   strings.TrimSpace(event.ID),
		EventType: strings.TrimSpace(string(event.Type)),
		Kind:      EventKindIgnored,
		Raw:       body,
	}

	switch result.EventType {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded, EventCheckoutAsyncFailed, EventCheckoutExpired:
		var session stripeapi.CheckoutSession
		if err := json.Unmarshal(objectRaw, &session); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ErrPayloadInvalid, err)
		}
		fillFromSession(result, &session)
	case EventInvoicePaid:
		var invoice stripeapi.Invoice
		if err := json.Unmarshal(objectRaw, &invoice); err != nil {
			return nil, fmt.Errorf("%w: invoice: %v", ErrPayloadInvalid, err)
		}
		fillFromInvoice(result, &invoice)
	case EventCustomerSubscriptionDelete:
		var subscription stripeapi.Subscription
		if err := json.Unmarshal(objectRaw, &subscription); err != nil {
			return nil, fmt.Errorf("%w: subscription: %v", ErrPayloadInvalid, err)
		}
		result.Kind = EventKindSubscriptionCanceled
		result.SubscriptionRef = subscription.ID
		result.Metadata = subscription.Metadata
		result.Status = constants.SubscriptionStatusCanceled
	}
	if result.EventID == "" {
		result.EventID = result.OrderID
	}
	return result, nil
}

func fillFromSession(result *WebhookEvent, session *stripeapi.CheckoutSession) {
	result.Kind = EventKindCheckout
	result.OrderID = strings.TrimSpace(session.ID)
	result.AnimalID = strings.TrimSpace(session.ClientReferenceID)
	result.AmountMinor = session.AmountTotal
	result.Currency = strings.ToUpper(string(session.Currency))
	result.Metadata = session.Metadata
	result.Email = session.CustomerEmail
	if session.CustomerDetails != nil {
		if result.Email == "" {
			result.Email = session.CustomerDetails.Email
		}
		result.Name = session.CustomerDetails.Name
	}
	if session.Subscription != nil {
		result.SubscriptionRef = session.Subscription.ID
	}
	if result.AnimalID == "" {
		result.AnimalID = strings.TrimSpace(session.Metadata[MetadataAnimalID])
	}
	result.Status = mapSessionStatus(result.EventType, string(session.PaymentStatus))
}

func fillFromInvoice(result *WebhookEvent, invoice *stripeapi.Invoice) {
	result.Kind = EventKindRenewal
	result.OrderID = strings.TrimSpace(invoice.ID)
	result.AmountMinor = invoice.AmountPaid
	result.Currency = strings.ToUpper(string(invoice.Currency))
	result.Email = invoice.CustomerEmail
	result.Name = invoice.CustomerName
	result.Status = constants.PaymentStatusPaid
	result.BillingReason = string(invoice.BillingReason)
	if invoice.Subscription != nil {
		result.SubscriptionRef = invoice.Subscription.ID
		result.Metadata = invoice.Subscription.Metadata
	}
	if invoice.SubscriptionDetails != nil && len(invoice.SubscriptionDetails.Metadata) > 0 {
		result.Metadata = invoice.SubscriptionDetails.Metadata
	}
	if result.Metadata != nil {
		result.AnimalID = strings.TrimSpace(result.Metadata[MetadataAnimalID])
	}
}

func mapSessionStatus(eventType string, paymentStatus string) string {
	switch eventType {
	case EventCheckoutAsyncSucceeded:
		return constants.PaymentStatusPaid
	case EventCheckoutAsyncFailed:
		return constants.PaymentStatusFailed
	case EventCheckoutExpired:
		return constants.PaymentStatusCanceled
	}
	switch strings.ToLower(strings.TrimSpace(paymentStatus)) {
	case "", "paid", "no_payment_required":
		return constants.PaymentStatusPaid
	default:
		return constants.PaymentStatusPending
	}
}

func parseMetadataID(metadata map[string]string, key string) uint {
	if metadata == nil {
		return 0
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(metadata[key]), 10, 64)
	if err != nil {
		return 0
	}
	return uint(parsed)
}
