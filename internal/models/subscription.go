package models

import "time"

// Subscription 按月认养资助，CANCELED 为终态
type Subscription struct {
	ID                     uint       `gorm:"primarykey" json:"id"`
	UserID                 uint       `gorm:"index;not null" json:"user_id"`
	AnimalID               string     `gorm:"size:64;index;not null" json:"animal_id"`
	MonthlyAmount          Money      `gorm:"type:decimal(20,2);not null" json:"monthly_amount"`
	Currency               string     `gorm:"size:8;not null" json:"currency"`
	Provider               string     `gorm:"size:20" json:"provider"`
	Method                 string     `gorm:"size:20;not null" json:"method"`
	Status                 string     `gorm:"size:20;index;not null" json:"status"`
	ProviderSubscriptionID *string    `gorm:"size:191;uniqueIndex" json:"provider_subscription_id,omitempty"`
	ActivatedAt            *time.Time `json:"activated_at"`
	NextChargeAt           *time.Time `json:"next_charge_at"`
	CanceledAt             *time.Time `json:"canceled_at"`
	CreatedAt              time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (Subscription) TableName() string {
	return "subscriptions"
}
