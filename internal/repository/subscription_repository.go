package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/models"

	"gorm.io/gorm"
)

// SubscriptionRepository 订阅数据访问接口
type SubscriptionRepository interface {
	Create(subscription *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByProviderSubscriptionID(providerSubscriptionID string) (*models.Subscription, error)
	List(filter SubscriptionListFilter) ([]models.Subscription, int64, error)
	ListActiveByUser(userID uint) ([]models.Subscription, error)
	Activate(id uint, activatedAt time.Time, nextChargeAt *time.Time) (bool, error)
	Cancel(id uint, canceledAt time.Time) (bool, error)
	BindProviderSubscription(id uint, provider, providerSubscriptionID string) error
	UpdateNextCharge(id uint, nextChargeAt *time.Time) error
	WithTx(tx *gorm.DB) *GormSubscriptionRepository
}

// GormSubscriptionRepository GORM 实现
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository 创建订阅仓库
func NewSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSubscriptionRepository) WithTx(tx *gorm.DB) *GormSubscriptionRepository {
	if tx == nil {
		return r
	}
	return &GormSubscriptionRepository{db: tx}
}

// Create 创建订阅
func (r *GormSubscriptionRepository) Create(subscription *models.Subscription) error {
	return r.db.Create(subscription).Error
}

// GetByID 根据 ID 获取订阅
func (r *GormSubscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.First(&subscription, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

// GetByProviderSubscriptionID 根据提供方订阅号获取订阅
func (r *GormSubscriptionRepository) GetByProviderSubscriptionID(providerSubscriptionID string) (*models.Subscription, error) {
	providerSubscriptionID = strings.TrimSpace(providerSubscriptionID)
	if providerSubscriptionID == "" {
		return nil, nil
	}
	var subscription models.Subscription
	if err := r.db.Where("provider_subscription_id = ?", providerSubscriptionID).First(&subscription).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

// List 订阅列表
func (r *GormSubscriptionRepository) List(filter SubscriptionListFilter) ([]models.Subscription, int64, error) {
	query := r.db.Model(&models.Subscription{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.AnimalID != "" {
		query = query.Where("animal_id = ?", filter.AnimalID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(filter.Status))
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var subscriptions []models.Subscription
	if err := applyPagination(query.Order("id desc"), filter.Page, filter.PageSize).Find(&subscriptions).Error; err != nil {
		return nil, 0, err
	}
	return subscriptions, total, nil
}

// ListActiveByUser 用户生效中的订阅
func (r *GormSubscriptionRepository) ListActiveByUser(userID uint) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	if err := r.db.Where("user_id = ? AND status = ?", userID, constants.SubscriptionStatusActive).
		Order("id asc").
		Find(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// Activate PENDING -> ACTIVE 条件更新
func (r *GormSubscriptionRepository) Activate(id uint, activatedAt time.Time, nextChargeAt *time.Time) (bool, error) {
	result := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, constants.SubscriptionStatusPending).
		Updates(map[string]interface{}{
			"status":         constants.SubscriptionStatusActive,
			"activated_at":   activatedAt,
			"next_charge_at": nextChargeAt,
			"updated_at":     activatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Cancel 取消订阅，仅对未取消的记录生效
func (r *GormSubscriptionRepository) Cancel(id uint, canceledAt time.Time) (bool, error) {
	result := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status <> ?", id, constants.SubscriptionStatusCanceled).
		Updates(map[string]interface{}{
			"status":         constants.SubscriptionStatusCanceled,
			"canceled_at":    canceledAt,
			"next_charge_at": nil,
			"updated_at":     canceledAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// BindProviderSubscription 绑定提供方订阅号
func (r *GormSubscriptionRepository) BindProviderSubscription(id uint, provider, providerSubscriptionID string) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ? AND (provider_subscription_id IS NULL OR provider_subscription_id = ?)", id, providerSubscriptionID).
		Updates(map[string]interface{}{
			"provider":                 provider,
			"provider_subscription_id": providerSubscriptionID,
		}).Error
}

// UpdateNextCharge 更新下次扣款时间
func (r *GormSubscriptionRepository) UpdateNextCharge(id uint, nextChargeAt *time.Time) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, constants.SubscriptionStatusActive).
		Update("next_charge_at", nextChargeAt).Error
}
