package service

import (
	"context"
	"strings"
	"time"

	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/repository"
)

// 审计动作
const (
	AuthzAuditActionGrant  = "grant"
	AuthzAuditActionRevoke = "revoke"
)

// AuthzAuditRecordInput 权限审计记录输入
type AuthzAuditRecordInput struct {
	OperatorUserID uint
	Action         string
	Role           string
	Object         string
	PolicyAction   string
	RequestID      string
	Detail         models.JSON
}

// AuthzAuditService 权限审计服务
type AuthzAuditService struct {
	repo repository.AuthzAuditLogRepository
	now  func() time.Time
}

// NewAuthzAuditService 创建权限审计服务
func NewAuthzAuditService(repo repository.AuthzAuditLogRepository) *AuthzAuditService {
	return &AuthzAuditService{repo: repo, now: time.Now}
}

// Record 记录一次策略变更，缺少操作人或动作时忽略
func (s *AuthzAuditService) Record(ctx context.Context, input AuthzAuditRecordInput) error {
	if s == nil || s.repo == nil {
		return nil
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if input.OperatorUserID == 0 || action == "" {
		return nil
	}
	item := &models.AuthzAuditLog{
		OperatorUserID: input.OperatorUserID,
		Action:         action,
		Role:           strings.TrimSpace(input.Role),
		Object:         strings.TrimSpace(input.Object),
		PolicyAction:   strings.TrimSpace(input.PolicyAction),
		RequestID:      strings.TrimSpace(input.RequestID),
		DetailJSON:     input.Detail,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(item); err != nil {
		return ErrPersistFailed.Wrap(err)
	}
	return nil
}

// List 查询权限审计日志
func (s *AuthzAuditService) List(ctx context.Context, filter repository.AuthzAuditLogListFilter) ([]models.AuthzAuditLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.AuthzAuditLog{}, 0, nil
	}
	logs, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, ErrPersistFailed.Wrap(err)
	}
	return logs, total, nil
}
