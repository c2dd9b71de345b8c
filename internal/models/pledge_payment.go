package models

import "time"

// PledgePayment 资助结算流水，只追加
type PledgePayment struct {
	ID                 uint       `gorm:"primarykey" json:"id"`
	PledgeKind         string     `gorm:"size:20;not null;uniqueIndex:idx_pledge_provider,priority:1" json:"pledge_kind"`
	PledgeID           uint       `gorm:"not null;uniqueIndex:idx_pledge_provider,priority:2" json:"pledge_id"`
	ProviderID         string     `gorm:"size:191;not null;uniqueIndex:idx_pledge_provider,priority:3" json:"provider_id"`
	Provider           string     `gorm:"size:20;not null" json:"provider"`
	Status             string     `gorm:"size:20;not null" json:"status"`
	Amount             Money      `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency           string     `gorm:"size:8;not null" json:"currency"`
	RawProviderPayload string     `gorm:"type:text" json:"-"`
	ArchivedAt         *time.Time `json:"archived_at"`
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (PledgePayment) TableName() string {
	return "pledge_payments"
}
