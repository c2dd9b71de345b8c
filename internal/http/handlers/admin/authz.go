package admin

import (
	"strconv"
	"strings"

	"github.com/pawpledge/internal/authz"
	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/repository"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
)

// RolePoliciesItem 角色及其直接策略
type RolePoliciesItem struct {
	Role     string         `json:"role"`
	Policies []authz.Policy `json:"policies"`
}

// RolePolicyRequest 授予或撤销角色策略
type RolePolicyRequest struct {
	Object string `json:"object" validate:"required,max=64"`
	Action string `json:"action" validate:"required,max=32"`
}

// ListRoles 角色与策略列表
func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list roles", err)
		return
	}
	items := make([]RolePoliciesItem, 0, len(roles))
	for _, role := range roles {
		policies, err := h.AuthzService.GetRolePolicies(role)
		if err != nil {
			respondError(c, response.CodeInternal, "failed to list roles", err)
			return
		}
		items = append(items, RolePoliciesItem{Role: role, Policies: policies})
	}
	response.Success(c, items)
}

// GrantRolePolicy 为角色授予策略
func (h *Handler) GrantRolePolicy(c *gin.Context) {
	h.changeRolePolicy(c, true)
}

// RevokeRolePolicy 撤销角色策略
func (h *Handler) RevokeRolePolicy(c *gin.Context) {
	h.changeRolePolicy(c, false)
}

func (h *Handler) changeRolePolicy(c *gin.Context, grant bool) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	role := c.Param("role")
	if _, err := authz.NormalizeRole(role); err != nil {
		respondError(c, response.CodeBadRequest, "role is invalid", nil)
		return
	}
	var req RolePolicyRequest
	if err := handlershared.BindStrictJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}

	change := h.AuthzService.RevokeRolePolicy
	event := "admin_role_policy_revoked"
	if grant {
		change = h.AuthzService.GrantRolePolicy
		event = "admin_role_policy_granted"
	}
	if err := change(role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeInternal, "failed to update role policy", err)
		return
	}
	object := authz.NormalizeObject(req.Object)
	action := authz.NormalizeAction(req.Action)
	requestLog(c).Infow(event,
		"operator_id", adminID,
		"role", role,
		"object", object,
		"action", action,
	)
	auditAction := service.AuthzAuditActionRevoke
	if grant {
		auditAction = service.AuthzAuditActionGrant
	}
	if err := h.AuthzAuditService.Record(c.Request.Context(), service.AuthzAuditRecordInput{
		OperatorUserID: adminID,
		Action:         auditAction,
		Role:           strings.ToLower(strings.TrimSpace(role)),
		Object:         object,
		PolicyAction:   action,
		RequestID:      c.GetString("request_id"),
		Detail:         models.JSON{"method": c.Request.Method, "path": c.FullPath()},
	}); err != nil {
		requestLog(c).Warnw("admin_authz_audit_record_failed", "operator_id", adminID, "error", err)
	}
	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list roles", err)
		return
	}
	response.Success(c, RolePoliciesItem{Role: role, Policies: policies})
}

// ListAuthzAuditLogs 策略变更审计列表
func (h *Handler) ListAuthzAuditLogs(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	filter := repository.AuthzAuditLogListFilter{
		Page:     page,
		PageSize: pageSize,
		Action:   strings.ToLower(strings.TrimSpace(c.Query("action"))),
		Role:     strings.ToLower(strings.TrimSpace(c.Query("role"))),
		Object:   strings.ToLower(strings.TrimSpace(c.Query("object"))),
	}
	if raw := strings.TrimSpace(c.Query("operator_id")); raw != "" {
		operatorID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "operator_id is invalid", nil)
			return
		}
		filter.OperatorUserID = uint(operatorID)
	}
	from, err := parseDateQuery(c, "created_from")
	if err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	to, err := parseDateQuery(c, "created_to")
	if err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	filter.CreatedFrom = from
	filter.CreatedTo = to

	logs, total, err := h.AuthzAuditService.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, logs, response.BuildPagination(page, pageSize, total))
}
