package repository

import (
	"time"

	"github.com/pawpledge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEventRepository 事件投递记录数据访问接口
type WebhookEventRepository interface {
	Record(event *models.WebhookEvent) (bool, error)
	WithTx(tx *gorm.DB) *GormWebhookEventRepository
}

// GormWebhookEventRepository GORM 实现
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository 创建事件仓库
func NewWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWebhookEventRepository) WithTx(tx *gorm.DB) *GormWebhookEventRepository {
	if tx == nil {
		return r
	}
	return &GormWebhookEventRepository{db: tx}
}

// Record 首次投递写入并返回 true，重复投递累加次数并返回 false
func (r *GormWebhookEventRepository) Record(event *models.WebhookEvent) (bool, error) {
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now()
	}
	if event.Deliveries == 0 {
		event.Deliveries = 1
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	err := r.db.Model(&models.WebhookEvent{}).
		Where("provider = ? AND event_id = ?", event.Provider, event.EventID).
		Updates(map[string]interface{}{
			"deliveries": gorm.Expr("deliveries + 1"),
			"updated_at": time.Now(),
		}).Error
	return false, err
}
