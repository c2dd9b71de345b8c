package repository

import (
	"errors"
	"strings"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnimalRepository 动物数据访问接口
type AnimalRepository interface {
	GetByID(id string) (*models.Animal, error)
	List(filter AnimalListFilter) ([]models.Animal, int64, error)
	Upsert(animal *models.Animal) error
	UpdateStatus(id, status string) (bool, error)
}

// GormAnimalRepository GORM 实现
type GormAnimalRepository struct {
	db *gorm.DB
}

// NewAnimalRepository 创建动物仓库
func NewAnimalRepository(db *gorm.DB) *GormAnimalRepository {
	return &GormAnimalRepository{db: db}
}

// GetByID 根据 ID 获取动物
func (r *GormAnimalRepository) GetByID(id string) (*models.Animal, error) {
	var animal models.Animal
	if err := r.db.Where("id = ?", strings.TrimSpace(id)).First(&animal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &animal, nil
}

// List 动物列表
func (r *GormAnimalRepository) List(filter AnimalListFilter) ([]models.Animal, int64, error) {
	query := r.db.Model(&models.Animal{})
	if filter.OnlyActive {
		query = query.Where("status = ?", constants.AnimalStatusActive)
	}
	if species := strings.TrimSpace(filter.Species); species != "" {
		query = query.Where("species = ?", species)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := likePattern(search)
		query = query.Where("("+likeCondition(r.db, "name")+" OR "+likeCondition(r.db, "id")+")", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var animals []models.Animal
	if err := applyPagination(query.Order("created_at desc, id asc"), filter.Page, filter.PageSize).Find(&animals).Error; err != nil {
		return nil, 0, err
	}
	return animals, total, nil
}

// Upsert 创建或更新动物资料
func (r *GormAnimalRepository) Upsert(animal *models.Animal) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "species", "status", "description", "updated_at"}),
	}).Create(animal).Error
}

// UpdateStatus 更新动物状态
func (r *GormAnimalRepository) UpdateStatus(id, status string) (bool, error) {
	result := r.db.Model(&models.Animal{}).Where("id = ?", strings.TrimSpace(id)).Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
