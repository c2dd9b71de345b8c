package models

import "time"

// AuthzAuditLog 角色策略变更审计
type AuthzAuditLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	OperatorUserID uint      `gorm:"index;not null" json:"operator_user_id"`
	Action         string    `gorm:"type:varchar(20);index;not null" json:"action"`
	Role           string    `gorm:"type:varchar(120);index;not null;default:''" json:"role"`
	Object         string    `gorm:"type:varchar(64);index;not null;default:''" json:"object"`
	PolicyAction   string    `gorm:"type:varchar(32);not null;default:''" json:"policy_action"`
	RequestID      string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON     JSON      `gorm:"type:json" json:"detail"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (AuthzAuditLog) TableName() string {
	return "authz_audit_logs"
}
