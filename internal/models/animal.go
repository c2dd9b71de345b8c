package models

import "time"

// Animal 可供认养资助的动物
type Animal struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Species     string    `gorm:"size:40;index" json:"species"`
	Status      string    `gorm:"size:20;index;not null;default:'active'" json:"status"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Animal) TableName() string {
	return "animals"
}
