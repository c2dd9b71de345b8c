package repository

import (
	"errors"
	"time"

	"github.com/pawpledge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PledgePaymentRepository 资助流水数据访问接口
type PledgePaymentRepository interface {
	Append(record *models.PledgePayment) (bool, error)
	GetByID(id uint) (*models.PledgePayment, error)
	ListByPledge(kind string, pledgeID uint) ([]models.PledgePayment, error)
	CountByPledge(kind string, pledgeID uint) (int64, error)
	MarkArchived(id uint, at time.Time) error
	WithTx(tx *gorm.DB) *GormPledgePaymentRepository
}

// GormPledgePaymentRepository GORM 实现
type GormPledgePaymentRepository struct {
	db *gorm.DB
}

// NewPledgePaymentRepository 创建资助流水仓库
func NewPledgePaymentRepository(db *gorm.DB) *GormPledgePaymentRepository {
	return &GormPledgePaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPledgePaymentRepository) WithTx(tx *gorm.DB) *GormPledgePaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPledgePaymentRepository{db: tx}
}

// Append 追加流水，(pledge_kind, pledge_id, provider_id) 冲突时不写入并返回 false
func (r *GormPledgePaymentRepository) Append(record *models.PledgePayment) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pledge_kind"}, {Name: "pledge_id"}, {Name: "provider_id"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 获取流水
func (r *GormPledgePaymentRepository) GetByID(id uint) (*models.PledgePayment, error) {
	var record models.PledgePayment
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListByPledge 按归属列出流水
func (r *GormPledgePaymentRepository) ListByPledge(kind string, pledgeID uint) ([]models.PledgePayment, error) {
	var records []models.PledgePayment
	if err := r.db.Where("pledge_kind = ? AND pledge_id = ?", kind, pledgeID).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountByPledge 统计归属流水数量
func (r *GormPledgePaymentRepository) CountByPledge(kind string, pledgeID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.PledgePayment{}).Where("pledge_kind = ? AND pledge_id = ?", kind, pledgeID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkArchived 标记原始报文已归档
func (r *GormPledgePaymentRepository) MarkArchived(id uint, at time.Time) error {
	return r.db.Model(&models.PledgePayment{}).Where("id = ? AND archived_at IS NULL", id).Update("archived_at", at).Error
}
