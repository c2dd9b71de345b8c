package models

import "time"

// PaymentIntent 单次支付尝试，按 (provider, provider_order_id) 对账，永不删除
type PaymentIntent struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	AnimalID        string     `gorm:"size:64;index;not null" json:"animal_id"`
	PayerEmail      string     `gorm:"size:255" json:"payer_email"`
	PayerName       string     `gorm:"size:120" json:"payer_name"`
	Amount          Money      `gorm:"type:decimal(20,2);not null" json:"amount"`
	AmountMinor     int64      `gorm:"not null" json:"amount_minor"`
	Currency        string     `gorm:"size:8;not null" json:"currency"`
	Provider        string     `gorm:"size:20;not null;uniqueIndex:idx_payment_intent_provider_order,priority:1" json:"provider"`
	ProviderOrderID *string    `gorm:"size:191;uniqueIndex:idx_payment_intent_provider_order,priority:2" json:"provider_order_id"`
	Status          string     `gorm:"size:20;index;not null" json:"status"`
	SubscriptionID  *uint      `gorm:"index" json:"subscription_id,omitempty"`
	ProviderPayload JSON       `gorm:"type:json" json:"provider_payload,omitempty"`
	PaidAt          *time.Time `json:"paid_at"`
	CallbackAt      *time.Time `json:"callback_at"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (PaymentIntent) TableName() string {
	return "payment_intents"
}

// OrderID 返回提供方单号，未分配时为空
func (p *PaymentIntent) OrderID() string {
	if p == nil || p.ProviderOrderID == nil {
		return ""
	}
	return *p.ProviderOrderID
}
