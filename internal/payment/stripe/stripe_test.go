package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pawpledge/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_abc"

func signHeader(secret string, body []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", at.Unix(), body)))
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestClient(t *testing.T, apiURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "https://api.pawpledge.test/api/v1/payments/return/stripe",
		CancelURL:     "https://pawpledge.test/donate/result?status=canceled",
		Currency:      "czk",
		APIBaseURL:    apiURL,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{SecretKey: "sk", WebhookSecret: "wh", SuccessURL: "not a url", CancelURL: "https://x.test"})
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, err = NewClient(Config{WebhookSecret: "wh", SuccessURL: "https://x.test", CancelURL: "https://x.test"})
	assert.ErrorIs(t, err, ErrConfigInvalid)

	c := newTestClient(t, "")
	assert.Equal(t, "CZK", c.Currency())
	assert.Equal(t, "https://api.pawpledge.test/api/v1/payments/return/stripe?session_id={CHECKOUT_SESSION_ID}", c.cfg.SuccessURL)
	assert.Equal(t, defaultTimeout, c.cfg.Timeout)
}

func TestWithSessionPlaceholder(t *testing.T) {
	assert.Equal(t, "https://a.test/r?x=1&session_id={CHECKOUT_SESSION_ID}", withSessionPlaceholder("https://a.test/r?x=1"))
	assert.Equal(t, "https://a.test/r?s={CHECKOUT_SESSION_ID}", withSessionPlaceholder("https://a.test/r?s={CHECKOUT_SESSION_ID}"))
	assert.Equal(t, "", withSessionPlaceholder(""))
}

func TestCreateCheckoutSessionSendsParams(t *testing.T) {
	var gotForm map[string][]string
	var gotIdempotency string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotIdempotency = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","payment_status":"unpaid"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.CreateCheckoutSession(context.Background(), CheckoutInput{
		PaymentIntentID: 7,
		AnimalID:        "dog-42",
		AmountMinor:     50000,
		Email:           "donor@pawpledge.test",
		IdempotencyKey:  "intent-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", result.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", result.URL)
	assert.Equal(t, constants.PaymentStatusPending, result.Status)

	assert.Equal(t, "intent-7", gotIdempotency)
	assert.Equal(t, []string{"payment"}, gotForm["mode"])
	assert.Equal(t, []string{"dog-42"}, gotForm["client_reference_id"])
	assert.Equal(t, []string{"50000"}, gotForm["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, []string{"czk"}, gotForm["line_items[0][price_data][currency]"])
	assert.Equal(t, []string{"7"}, gotForm["metadata[payment_intent_id]"])
	assert.Equal(t, []string{"donor@pawpledge.test"}, gotForm["customer_email"])
	_, recurring := gotForm["line_items[0][price_data][recurring][interval]"]
	assert.False(t, recurring)
}

func TestCreateCheckoutSessionSubscriptionMode(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		_, _ = w.Write([]byte(`{"id":"cs_sub_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_sub_1"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.CreateCheckoutSession(context.Background(), CheckoutInput{
		Mode:           ModeSubscription,
		SubscriptionID: 3,
		AnimalID:       "cat-7",
		AmountMinor:    25000,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"subscription"}, gotForm["mode"])
	assert.Equal(t, []string{"month"}, gotForm["line_items[0][price_data][recurring][interval]"])
	assert.Equal(t, []string{"3"}, gotForm["metadata[subscription_id]"])
	assert.Equal(t, []string{"3"}, gotForm["subscription_data[metadata][subscription_id]"])
}

func TestCreateCheckoutSessionErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"amount too small"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.CreateCheckoutSession(context.Background(), CheckoutInput{AnimalID: "dog-42", AmountMinor: 10})
	assert.ErrorIs(t, err, ErrRequestFailed)

	_, err = c.CreateCheckoutSession(context.Background(), CheckoutInput{AnimalID: "dog-42"})
	assert.ErrorIs(t, err, ErrInputInvalid)
	_, err = c.CreateCheckoutSession(context.Background(), CheckoutInput{AmountMinor: 100})
	assert.ErrorIs(t, err, ErrInputInvalid)
}

func TestParseWebhookCheckoutCompleted(t *testing.T) {
	payload := map[string]interface{}{
		"id":     "evt_1",
		"object": "event",
		"type":   "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":              "checkout.session",
				"id":                  "sess_abc",
				"client_reference_id": "dog-42",
				"amount_total":        50000,
				"currency":            "czk",
				"payment_status":      "paid",
				"customer_details":    map[string]interface{}{"email": "donor@pawpledge.test", "name": "Jana"},
				"metadata":            map[string]interface{}{"payment_intent_id": "7"},
			},
		},
	}
	body, _ := json.Marshal(payload)

	event, err := ParseWebhook(testWebhookSecret, body, signHeader(testWebhookSecret, body, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.EventID)
	assert.Equal(t, EventKindCheckout, event.Kind)
	assert.Equal(t, "sess_abc", event.OrderID)
	assert.Equal(t, "dog-42", event.AnimalID)
	assert.Equal(t, int64(50000), event.AmountMinor)
	assert.Equal(t, "CZK", event.Currency)
	assert.Equal(t, constants.PaymentStatusPaid, event.Status)
	assert.Equal(t, "donor@pawpledge.test", event.Email)
	assert.Equal(t, "Jana", event.Name)
	assert.Equal(t, uint(7), event.PaymentIntentID())
	assert.Equal(t, uint(0), event.SubscriptionID())
}

func TestParseWebhookFlatSessionPayload(t *testing.T) {
	body := []byte(`{"type":"checkout.session.completed","client_reference_id":"dog-42","amount_total":50000,"id":"sess_abc"}`)

	event, err := ParseWebhook(testWebhookSecret, body, signHeader(testWebhookSecret, body, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "sess_abc", event.EventID)
	assert.Equal(t, "sess_abc", event.OrderID)
	assert.Equal(t, "dog-42", event.AnimalID)
	assert.Equal(t, int64(50000), event.AmountMinor)
	assert.Equal(t, constants.PaymentStatusPaid, event.Status)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"sess_abc"}}}`)

	_, err := ParseWebhook(testWebhookSecret, body, signHeader("whsec_other", body, time.Now()))
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	_, err = ParseWebhook(testWebhookSecret, body, "")
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	stale := time.Now().Add(-time.Hour)
	_, err = ParseWebhook(testWebhookSecret, body, signHeader(testWebhookSecret, body, stale))
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	tampered := []byte(strings.Replace(string(body), "sess_abc", "sess_abd", 1))
	_, err = ParseWebhook(testWebhookSecret, tampered, signHeader(testWebhookSecret, body, time.Now()))
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	_, err = ParseWebhook("", body, "t=1,v1=00")
	assert.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestParseWebhookStatusMapping(t *testing.T) {
	cases := []struct {
		eventType     string
		paymentStatus string
		want          string
	}{
		{EventCheckoutCompleted, "paid", constants.PaymentStatusPaid},
		{EventCheckoutCompleted, "no_payment_required", constants.PaymentStatusPaid},
		{EventCheckoutCompleted, "unpaid", constants.PaymentStatusPending},
		{EventCheckoutAsyncSucceeded, "paid", constants.PaymentStatusPaid},
		{EventCheckoutAsyncFailed, "unpaid", constants.PaymentStatusFailed},
		{EventCheckoutExpired, "unpaid", constants.PaymentStatusCanceled},
	}
	for _, tc := range cases {
		body := []byte(fmt.Sprintf(`{"id":"evt_%s","object":"event","type":%q,"data":{"object":{"object":"checkout.session","id":"sess_1","payment_status":%q}}}`,
			tc.paymentStatus, tc.eventType, tc.paymentStatus))
		event, err := ParseWebhook(testWebhookSecret, body, signHeader(testWebhookSecret, body, time.Now()))
		require.NoError(t, err, tc.eventType)
		assert.Equal(t, tc.want, event.Status, tc.eventType+"/"+tc.paymentStatus)
	}
}

func TestParseWebhookInvoiceAndSubscription(t *testing.T) {
	invoiceBody := []byte(`{"id":"evt_inv","object":"event","type":"invoice.paid","data":{"object":{"object":"invoice","id":"in_1","amount_paid":25000,"currency":"czk","subscription":"sub_1","customer_email":"donor@pawpledge.test","subscription_details":{"metadata":{"subscription_id":"3","animal_id":"cat-7"}}}}}`)
	event, err := ParseWebhook(testWebhookSecret, invoiceBody, signHeader(testWebhookSecret, invoiceBody, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventKindRenewal, event.Kind)
	assert.Equal(t, "in_1", event.OrderID)
	assert.Equal(t, "sub_1", event.SubscriptionRef)
	assert.Equal(t, int64(25000), event.AmountMinor)
	assert.Equal(t, uint(3), event.SubscriptionID())
	assert.Equal(t, "cat-7", event.AnimalID)

	deletedBody := []byte(`{"id":"evt_del","object":"event","type":"customer.subscription.deleted","data":{"object":{"object":"subscription","id":"sub_1","metadata":{"subscription_id":"3"}}}}`)
	event, err = ParseWebhook(testWebhookSecret, deletedBody, signHeader(testWebhookSecret, deletedBody, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventKindSubscriptionCanceled, event.Kind)
	assert.Equal(t, "sub_1", event.SubscriptionRef)
	assert.Equal(t, uint(3), event.SubscriptionID())

	otherBody := []byte(`{"id":"evt_other","object":"event","type":"charge.refunded","data":{"object":{"object":"charge","id":"ch_1"}}}`)
	event, err = ParseWebhook(testWebhookSecret, otherBody, signHeader(testWebhookSecret, otherBody, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventKindIgnored, event.Kind)
}
