package repository

import (
	"errors"
	"strings"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentIntentRepository 支付意图数据访问接口
type PaymentIntentRepository interface {
	Create(intent *models.PaymentIntent) error
	GetByID(id uint) (*models.PaymentIntent, error)
	GetByProviderOrder(provider, orderID string) (*models.PaymentIntent, error)
	UpsertByProviderOrder(intent *models.PaymentIntent) (*models.PaymentIntent, bool, error)
	AssignProviderOrder(id uint, orderID string, updates map[string]interface{}) (bool, error)
	TransitionStatus(id uint, updates map[string]interface{}) (bool, error)
	ListAdmin(filter PaymentIntentListFilter) ([]models.PaymentIntent, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentIntentRepository
}

// GormPaymentIntentRepository GORM 实现
type GormPaymentIntentRepository struct {
	db *gorm.DB
}

// NewPaymentIntentRepository 创建支付意图仓库
func NewPaymentIntentRepository(db *gorm.DB) *GormPaymentIntentRepository {
	return &GormPaymentIntentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentIntentRepository) WithTx(tx *gorm.DB) *GormPaymentIntentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentIntentRepository{db: tx}
}

// Create 创建支付意图
func (r *GormPaymentIntentRepository) Create(intent *models.PaymentIntent) error {
	return r.db.Create(intent).Error
}

// GetByID 根据 ID 获取支付意图
func (r *GormPaymentIntentRepository) GetByID(id uint) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.First(&intent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// GetByProviderOrder 根据提供方单号获取支付意图
func (r *GormPaymentIntentRepository) GetByProviderOrder(provider, orderID string) (*models.PaymentIntent, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	var intent models.PaymentIntent
	if err := r.db.Where("provider = ? AND provider_order_id = ?", provider, orderID).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// UpsertByProviderOrder 按 (provider, provider_order_id) 插入，已存在时返回现有记录
func (r *GormPaymentIntentRepository) UpsertByProviderOrder(intent *models.PaymentIntent) (*models.PaymentIntent, bool, error) {
	if intent == nil || intent.OrderID() == "" {
		return nil, false, errors.New("provider order id is required")
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_order_id"}},
		DoNothing: true,
	}).Create(intent)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return intent, true, nil
	}
	existing, err := r.GetByProviderOrder(intent.Provider, intent.OrderID())
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, gorm.ErrRecordNotFound
	}
	return existing, false, nil
}

// AssignProviderOrder 为尚未分配单号的意图写入提供方单号
func (r *GormPaymentIntentRepository) AssignProviderOrder(id uint, orderID string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{}
	for key, value := range updates {
		values[key] = value
	}
	values["provider_order_id"] = orderID
	result := r.db.Model(&models.PaymentIntent{}).
		Where("id = ? AND provider_order_id IS NULL", id).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TransitionStatus 条件更新：仅当当前状态非终态时写入，返回是否生效
func (r *GormPaymentIntentRepository) TransitionStatus(id uint, updates map[string]interface{}) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	result := r.db.Model(&models.PaymentIntent{}).
		Where("id = ? AND status NOT IN ?", id, constants.PaymentTerminalStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListAdmin 管理端支付意图列表
func (r *GormPaymentIntentRepository) ListAdmin(filter PaymentIntentListFilter) ([]models.PaymentIntent, int64, error) {
	query := r.db.Model(&models.PaymentIntent{})
	if filter.AnimalID != "" {
		query = query.Where("animal_id = ?", filter.AnimalID)
	}
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(filter.Status))
	}
	if email := strings.TrimSpace(filter.PayerEmail); email != "" {
		query = query.Where(likeCondition(r.db, "payer_email"), likePattern(email))
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var intents []models.PaymentIntent
	if err := applyPagination(query.Order("id desc"), filter.Page, filter.PageSize).Find(&intents).Error; err != nil {
		return nil, 0, err
	}
	return intents, total, nil
}
