package models

import "time"

// WebhookEvent 提供方事件投递记录
type WebhookEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Provider    string    `gorm:"size:20;not null;uniqueIndex:idx_webhook_event_provider_event,priority:1" json:"provider"`
	EventID     string    `gorm:"size:191;not null;uniqueIndex:idx_webhook_event_provider_event,priority:2" json:"event_id"`
	EventType   string    `gorm:"size:80;index" json:"event_type"`
	OrderID     string    `gorm:"size:191;index" json:"order_id"`
	Result      string    `gorm:"size:20" json:"result"`
	Deliveries  int       `gorm:"not null;default:1" json:"deliveries"`
	ProcessedAt time.Time `json:"processed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
