package service

import (
	"context"
	"strings"

	"github.com/pawpledge/internal/cache"
	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/repository"
)

// AnimalService 动物档案服务
type AnimalService struct {
	animalRepo repository.AnimalRepository
}

// NewAnimalService 创建动物档案服务
func NewAnimalService(animalRepo repository.AnimalRepository) *AnimalService {
	return &AnimalService{animalRepo: animalRepo}
}

// UpsertAnimalInput 新建或更新动物
type UpsertAnimalInput struct {
	ID          string
	Name        string
	Species     string
	Status      string
	Description string
}

// Get 获取动物档案，优先读缓存
func (s *AnimalService) Get(ctx context.Context, id string) (*models.Animal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrAnimalIDRequired
	}
	if cached, hit, err := cache.GetAnimal(ctx, id); err != nil {
		logger.Warnw("animal_cache_read_failed", "animal_id", id, "error", err)
	} else if hit {
		return cached, nil
	}

	animal, err := s.animalRepo.GetByID(id)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	if animal == nil {
		return nil, ErrAnimalNotFound
	}
	if err := cache.SetAnimal(ctx, animal); err != nil {
		logger.Warnw("animal_cache_write_failed", "animal_id", id, "error", err)
	}
	return animal, nil
}

// GetActive 获取可资助的动物
func (s *AnimalService) GetActive(ctx context.Context, id string) (*models.Animal, error) {
	animal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if animal.Status != constants.AnimalStatusActive {
		return nil, ErrAnimalInactive
	}
	return animal, nil
}

// List 动物列表
func (s *AnimalService) List(ctx context.Context, filter repository.AnimalListFilter) ([]models.Animal, int64, error) {
	animals, total, err := s.animalRepo.List(filter)
	if err != nil {
		return nil, 0, ErrPersistFailed.Wrap(err)
	}
	return animals, total, nil
}

// Upsert 新建或更新动物档案
func (s *AnimalService) Upsert(ctx context.Context, input UpsertAnimalInput) (*models.Animal, error) {
	id := strings.TrimSpace(input.ID)
	name := strings.TrimSpace(input.Name)
	if id == "" {
		return nil, ErrAnimalIDRequired
	}
	if name == "" {
		return nil, ErrAnimalInvalid
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = constants.AnimalStatusActive
	}
	if !constants.IsAnimalStatus(status) {
		return nil, ErrAnimalStatusInvalid
	}

	animal := &models.Animal{
		ID:          id,
		Name:        name,
		Species:     strings.ToLower(strings.TrimSpace(input.Species)),
		Status:      status,
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.animalRepo.Upsert(animal); err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	s.invalidate(ctx, id)
	stored, err := s.animalRepo.GetByID(id)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	if stored == nil {
		return animal, nil
	}
	return stored, nil
}

// SetStatus 更新动物状态
func (s *AnimalService) SetStatus(ctx context.Context, id, status string) error {
	id = strings.TrimSpace(id)
	status = strings.TrimSpace(status)
	if id == "" {
		return ErrAnimalIDRequired
	}
	if !constants.IsAnimalStatus(status) {
		return ErrAnimalStatusInvalid
	}
	updated, err := s.animalRepo.UpdateStatus(id, status)
	if err != nil {
		return ErrPersistFailed.Wrap(err)
	}
	if !updated {
		return ErrAnimalNotFound
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *AnimalService) invalidate(ctx context.Context, id string) {
	if err := cache.InvalidateAnimal(ctx, id); err != nil {
		logger.Warnw("animal_cache_invalidate_failed", "animal_id", id, "error", err)
	}
}
