package service

import (
	"context"
	"errors"
	"testing"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/models"

	"github.com/shopspring/decimal"
)

func newSubscriptionServiceForTest(t *testing.T) (*SubscriptionService, *serviceFixture) {
	t.Helper()
	f := setupServiceFixture(t)
	f.seedAnimal(t, "dog-42", constants.AnimalStatusActive)
	return NewSubscriptionService(f.subscriptionRepo, f.animalSvc, "czk"), f
}

func TestCreateSubscriptionInitialStatusByMethod(t *testing.T) {
	svc, _ := newSubscriptionServiceForTest(t)
	amount := models.NewMoneyFromDecimal(decimal.NewFromInt(250))

	card, err := svc.Create(context.Background(), CreateSubscriptionInput{UserID: 1, AnimalID: "dog-42", MonthlyAmount: amount, Method: "card"})
	if err != nil {
		t.Fatalf("create card subscription failed: %v", err)
	}
	if card.Status != constants.SubscriptionStatusPending || card.Provider != constants.PaymentProviderStripe {
		t.Fatalf("card subscription should start PENDING on stripe, got %s/%s", card.Status, card.Provider)
	}
	if card.ActivatedAt != nil {
		t.Fatalf("card subscription must not be activated yet")
	}

	bank, err := svc.Create(context.Background(), CreateSubscriptionInput{UserID: 1, AnimalID: "dog-42", MonthlyAmount: amount, Method: "bank_transfer"})
	if err != nil {
		t.Fatalf("create bank subscription failed: %v", err)
	}
	if bank.Status != constants.SubscriptionStatusActive || bank.ActivatedAt == nil || bank.NextChargeAt == nil {
		t.Fatalf("bank transfer should start ACTIVE with schedule, got %+v", bank)
	}
	if bank.Currency != "CZK" {
		t.Fatalf("expected CZK, got %s", bank.Currency)
	}
}

func TestCreateSubscriptionValidation(t *testing.T) {
	svc, f := newSubscriptionServiceForTest(t)
	f.seedAnimal(t, "cat-1", constants.AnimalStatusAdopted)

	tests := []struct {
		name  string
		input CreateSubscriptionInput
		want  error
	}{
		{name: "zero_amount", input: CreateSubscriptionInput{AnimalID: "dog-42", Method: "card"}, want: ErrInvalidAmount},
		{name: "bad_method", input: CreateSubscriptionInput{AnimalID: "dog-42", Method: "cash", MonthlyAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(1))}, want: ErrSubscriptionMethod},
		{name: "unknown_animal", input: CreateSubscriptionInput{AnimalID: "ghost", Method: "card", MonthlyAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(1))}, want: ErrAnimalNotFound},
		{name: "too_precise", input: CreateSubscriptionInput{AnimalID: "dog-42", Method: "card", MonthlyAmount: models.Money{Decimal: decimal.RequireFromString("9.999")}}, want: ErrAmountTooPrecise},
		{name: "too_large", input: CreateSubscriptionInput{AnimalID: "dog-42", Method: "card", MonthlyAmount: models.Money{Decimal: decimal.RequireFromString("92233720368547758.08")}}, want: ErrAmountTooLarge},
		{name: "adopted_animal", input: CreateSubscriptionInput{AnimalID: "cat-1", Method: "card", MonthlyAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(1))}, want: ErrAnimalInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCancelSubscriptionOwnershipAndConflict(t *testing.T) {
	svc, f := newSubscriptionServiceForTest(t)
	created, err := svc.Create(context.Background(), CreateSubscriptionInput{
		UserID:        1,
		AnimalID:      "dog-42",
		MonthlyAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(250)),
		Method:        "bank_transfer",
	})
	if err != nil {
		t.Fatalf("create subscription failed: %v", err)
	}

	_, err = svc.Cancel(context.Background(), created.ID, Requester{UserID: 2})
	if !errors.Is(err, ErrSubscriptionNotOwned) || KindOf(err) != KindAuthorization {
		t.Fatalf("non-owner cancel should fail with authorization, got %v", err)
	}
	stored, _ := f.subscriptionRepo.GetByID(created.ID)
	if stored.Status != constants.SubscriptionStatusActive {
		t.Fatalf("non-owner cancel must not mutate, got %s", stored.Status)
	}

	canceled, err := svc.Cancel(context.Background(), created.ID, Requester{UserID: 1})
	if err != nil {
		t.Fatalf("owner cancel failed: %v", err)
	}
	if canceled.Status != constants.SubscriptionStatusCanceled || canceled.CanceledAt == nil {
		t.Fatalf("unexpected canceled record: %+v", canceled)
	}
	before, _ := f.subscriptionRepo.GetByID(created.ID)

	_, err = svc.Cancel(context.Background(), created.ID, Requester{UserID: 1})
	if !errors.Is(err, ErrSubscriptionCanceled) || KindOf(err) != KindConflict {
		t.Fatalf("double cancel should conflict, got %v", err)
	}
	stored, _ = f.subscriptionRepo.GetByID(created.ID)
	if stored.Status != constants.SubscriptionStatusCanceled || stored.CanceledAt == nil || !stored.CanceledAt.Equal(*before.CanceledAt) {
		t.Fatalf("double cancel must leave record unchanged")
	}
}

func TestCancelSubscriptionStaffOverride(t *testing.T) {
	svc, _ := newSubscriptionServiceForTest(t)
	created, err := svc.Create(context.Background(), CreateSubscriptionInput{
		UserID:        1,
		AnimalID:      "dog-42",
		MonthlyAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(250)),
		Method:        "card",
	})
	if err != nil {
		t.Fatalf("create subscription failed: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), created.ID, Requester{UserID: 99, ManageAll: true}); err != nil {
		t.Fatalf("staff cancel failed: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), 12345, Requester{UserID: 1}); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListActiveOnlyReturnsActiveOwned(t *testing.T) {
	svc, _ := newSubscriptionServiceForTest(t)
	amount := models.NewMoneyFromDecimal(decimal.NewFromInt(250))
	active, _ := svc.Create(context.Background(), CreateSubscriptionInput{UserID: 1, AnimalID: "dog-42", MonthlyAmount: amount, Method: "bank_transfer"})
	_, _ = svc.Create(context.Background(), CreateSubscriptionInput{UserID: 1, AnimalID: "dog-42", MonthlyAmount: amount, Method: "card"})
	_, _ = svc.Create(context.Background(), CreateSubscriptionInput{UserID: 2, AnimalID: "dog-42", MonthlyAmount: amount, Method: "bank_transfer"})
	canceled, _ := svc.Create(context.Background(), CreateSubscriptionInput{UserID: 1, AnimalID: "dog-42", MonthlyAmount: amount, Method: "bank_transfer"})
	if _, err := svc.Cancel(context.Background(), canceled.ID, Requester{UserID: 1}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	items, err := svc.ListActive(context.Background(), 1)
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(items) != 1 || items[0].SubscriptionID != active.ID {
		t.Fatalf("expected only subscription %d, got %+v", active.ID, items)
	}
	if items[0].NextChargeAt == nil || !items[0].MonthlyAmount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("unexpected sponsorship: %+v", items[0])
	}

	all, total, err := svc.ListForUser(context.Background(), 1, 1, 20)
	if err != nil || total != 3 || len(all) != 3 {
		t.Fatalf("expected 3 subscriptions for user, got %d (%d) err=%v", len(all), total, err)
	}
}
