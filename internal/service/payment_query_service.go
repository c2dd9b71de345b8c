package service

import (
	"context"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/repository"
)

// PaymentQueryService 后台支付查询
type PaymentQueryService struct {
	intentRepo repository.PaymentIntentRepository
	ledgerRepo repository.PledgePaymentRepository
}

// NewPaymentQueryService 创建支付查询服务
func NewPaymentQueryService(intentRepo repository.PaymentIntentRepository, ledgerRepo repository.PledgePaymentRepository) *PaymentQueryService {
	return &PaymentQueryService{intentRepo: intentRepo, ledgerRepo: ledgerRepo}
}

// IntentLedger 支付意图及其结算流水
type IntentLedger struct {
	Intent  *models.PaymentIntent  `json:"intent"`
	Entries []models.PledgePayment `json:"entries"`
}

// ListIntents 支付意图分页列表
func (s *PaymentQueryService) ListIntents(ctx context.Context, filter repository.PaymentIntentListFilter) ([]models.PaymentIntent, int64, error) {
	intents, total, err := s.intentRepo.ListAdmin(filter)
	if err != nil {
		return nil, 0, ErrPersistFailed.Wrap(err)
	}
	return intents, total, nil
}

// GetIntentLedger 查询单个支付意图的流水，关联订阅时一并返回续费流水
func (s *PaymentQueryService) GetIntentLedger(ctx context.Context, intentID uint) (*IntentLedger, error) {
	intent, err := s.intentRepo.GetByID(intentID)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	if intent == nil {
		return nil, ErrPaymentNotFound
	}
	entries, err := s.ledgerRepo.ListByPledge(constants.PledgeKindIntent, intent.ID)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	if intent.SubscriptionID != nil {
		renewals, err := s.ledgerRepo.ListByPledge(constants.PledgeKindSubscription, *intent.SubscriptionID)
		if err != nil {
			return nil, ErrPersistFailed.Wrap(err)
		}
		entries = append(entries, renewals...)
	}
	if entries == nil {
		entries = []models.PledgePayment{}
	}
	return &IntentLedger{Intent: intent, Entries: entries}, nil
}
