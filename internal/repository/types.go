package repository

import "time"

// PaymentIntentListFilter 查询支付意图列表的过滤条件
type PaymentIntentListFilter struct {
	Page        int
	PageSize    int
	AnimalID    string
	Provider    string
	Status      string
	PayerEmail  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// SubscriptionListFilter 查询订阅列表的过滤条件
type SubscriptionListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	AnimalID string
	Status   string
}

// AnimalListFilter 查询动物列表的过滤条件
type AnimalListFilter struct {
	Page       int
	PageSize   int
	Species    string
	Search     string
	OnlyActive bool
}

// AuthzAuditLogListFilter 查询权限审计日志的过滤条件
type AuthzAuditLogListFilter struct {
	Page           int
	PageSize       int
	OperatorUserID uint
	Action         string
	Role           string
	Object         string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}
