package service

import (
	"context"
	"errors"
	"testing"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/repository"
)

func TestPaymentQueryLedgerForSettledIntent(t *testing.T) {
	f := setupServiceFixture(t)
	body := []byte(e2eCheckoutPayload)
	if _, err := f.reconcile.HandleStripeWebhook(context.Background(), signStripePayload(body), body); err != nil {
		t.Fatalf("handle webhook failed: %v", err)
	}
	intent := f.intentByOrder(t, constants.PaymentProviderStripe, "sess_abc")

	svc := NewPaymentQueryService(f.intentRepo, f.ledgerRepo)
	ledger, err := svc.GetIntentLedger(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("get ledger failed: %v", err)
	}
	if len(ledger.Entries) != 1 || ledger.Entries[0].ProviderID != "sess_abc" {
		t.Fatalf("unexpected ledger entries: %+v", ledger.Entries)
	}

	items, total, err := svc.ListIntents(context.Background(), repository.PaymentIntentListFilter{Status: "paid", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list intents failed: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected one paid intent, got total=%d len=%d", total, len(items))
	}
}

func TestPaymentQueryLedgerNotFound(t *testing.T) {
	f := setupServiceFixture(t)
	svc := NewPaymentQueryService(f.intentRepo, f.ledgerRepo)
	_, err := svc.GetIntentLedger(context.Background(), 404)
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
