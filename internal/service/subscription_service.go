package service

import (
	"context"
	"strings"
	"time"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/repository"
)

// SubscriptionService 月度资助生命周期服务
type SubscriptionService struct {
	subscriptionRepo repository.SubscriptionRepository
	animalSvc        *AnimalService
	currency         string
	now              func() time.Time
}

// NewSubscriptionService 创建订阅服务
func NewSubscriptionService(subscriptionRepo repository.SubscriptionRepository, animalSvc *AnimalService, currency string) *SubscriptionService {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		animalSvc:        animalSvc,
		currency:         currency,
		now:              time.Now,
	}
}

// CreateSubscriptionInput 创建订阅输入
type CreateSubscriptionInput struct {
	UserID        uint
	AnimalID      string
	MonthlyAmount models.Money
	Method        string
}

// Requester 操作发起人，ManageAll 表示角色可越过归属校验
type Requester struct {
	UserID    uint
	ManageAll bool
}

// ActiveSponsorship 生效中的资助
type ActiveSponsorship struct {
	SubscriptionID uint         `json:"subscription_id"`
	AnimalID       string       `json:"animal_id"`
	MonthlyAmount  models.Money `json:"monthly_amount"`
	Currency       string       `json:"currency"`
	NextChargeAt   *time.Time   `json:"next_charge_at"`
}

// Create 创建订阅，即时到账方式直接生效
func (s *SubscriptionService) Create(ctx context.Context, input CreateSubscriptionInput) (*models.Subscription, error) {
	if _, err := pledgeMinorUnits(input.MonthlyAmount, s.currency); err != nil {
		return nil, err
	}
	method := strings.ToLower(strings.TrimSpace(input.Method))
	if !constants.IsSubscriptionMethod(method) {
		return nil, ErrSubscriptionMethod
	}
	animal, err := s.animalSvc.GetActive(ctx, input.AnimalID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	subscription := &models.Subscription{
		UserID:        input.UserID,
		AnimalID:      animal.ID,
		MonthlyAmount: input.MonthlyAmount,
		Currency:      s.currency,
		Method:        method,
		Status:        constants.SubscriptionStatusPending,
	}
	if method == constants.SubscriptionMethodCard {
		subscription.Provider = constants.PaymentProviderStripe
	}
	if constants.IsInstantMethod(method) {
		subscription.Status = constants.SubscriptionStatusActive
		subscription.ActivatedAt = &now
		next, err := NextMonthlyCharge(now, now)
		if err != nil {
			logger.Warnw("subscription_next_charge_compute_failed", "animal_id", animal.ID, "error", err)
		}
		subscription.NextChargeAt = next
	}
	if err := s.subscriptionRepo.Create(subscription); err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	logger.Infow("subscription_created",
		"subscription_id", subscription.ID,
		"user_id", subscription.UserID,
		"animal_id", subscription.AnimalID,
		"method", subscription.Method,
		"status", subscription.Status,
	)
	return subscription, nil
}

// Get 获取订阅，非本人且无越权许可时视为不存在
func (s *SubscriptionService) Get(ctx context.Context, id uint, requester Requester) (*models.Subscription, error) {
	subscription, err := s.subscriptionRepo.GetByID(id)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	if subscription == nil {
		return nil, ErrSubscriptionNotFound
	}
	if !requester.ManageAll && subscription.UserID != requester.UserID {
		return nil, ErrSubscriptionNotOwned
	}
	return subscription, nil
}

// Cancel 取消订阅，CANCELED 为终态
func (s *SubscriptionService) Cancel(ctx context.Context, id uint, requester Requester) (*models.Subscription, error) {
	subscription, err := s.Get(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if subscription.Status == constants.SubscriptionStatusCanceled {
		return nil, ErrSubscriptionCanceled
	}
	now := s.now()
	updated, err := s.subscriptionRepo.Cancel(subscription.ID, now)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	if !updated {
		return nil, ErrSubscriptionCanceled
	}
	subscription.Status = constants.SubscriptionStatusCanceled
	subscription.CanceledAt = &now
	subscription.NextChargeAt = nil
	subscription.UpdatedAt = now
	logger.Infow("subscription_canceled",
		"subscription_id", subscription.ID,
		"user_id", subscription.UserID,
		"requester_id", requester.UserID,
		"override", requester.ManageAll && subscription.UserID != requester.UserID,
	)
	return subscription, nil
}

// ListActive 用户生效中的资助
func (s *SubscriptionService) ListActive(ctx context.Context, userID uint) ([]ActiveSponsorship, error) {
	subscriptions, err := s.subscriptionRepo.ListActiveByUser(userID)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	result := make([]ActiveSponsorship, 0, len(subscriptions))
	for _, item := range subscriptions {
		result = append(result, ActiveSponsorship{
			SubscriptionID: item.ID,
			AnimalID:       item.AnimalID,
			MonthlyAmount:  item.MonthlyAmount,
			Currency:       item.Currency,
			NextChargeAt:   item.NextChargeAt,
		})
	}
	return result, nil
}

// ListForUser 用户订阅分页列表
func (s *SubscriptionService) ListForUser(ctx context.Context, userID uint, page, pageSize int) ([]models.Subscription, int64, error) {
	return s.ListAll(ctx, repository.SubscriptionListFilter{UserID: userID, Page: page, PageSize: pageSize})
}

// ListAll 后台订阅分页列表
func (s *SubscriptionService) ListAll(ctx context.Context, filter repository.SubscriptionListFilter) ([]models.Subscription, int64, error) {
	subscriptions, total, err := s.subscriptionRepo.List(filter)
	if err != nil {
		return nil, 0, ErrPersistFailed.Wrap(err)
	}
	return subscriptions, total, nil
}
