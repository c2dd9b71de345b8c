package cache

import (
	"context"
	"strings"
	"time"

	"github.com/pawpledge/internal/models"
)

const animalCacheTTL = 5 * time.Minute

// AnimalKey 动物档案缓存键
func AnimalKey(id string) string {
	return "animal:" + strings.TrimSpace(id)
}

// GetAnimal 读取动物档案缓存
func GetAnimal(ctx context.Context, id string) (*models.Animal, bool, error) {
	var animal models.Animal
	hit, err := GetJSON(ctx, AnimalKey(id), &animal)
	if err != nil || !hit {
		return nil, false, err
	}
	return &animal, true, nil
}

// SetAnimal 写入动物档案缓存
func SetAnimal(ctx context.Context, animal *models.Animal) error {
	if animal == nil {
		return nil
	}
	return SetJSON(ctx, AnimalKey(animal.ID), animal, animalCacheTTL)
}

// InvalidateAnimal 删除动物档案缓存
func InvalidateAnimal(ctx context.Context, id string) error {
	return Del(ctx, AnimalKey(id))
}
