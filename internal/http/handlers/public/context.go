package public

import (
	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, handlershared.ContextKeyUserID)
}

// requesterFor 构造操作发起人，角色具备 action 授权时可越过归属校验
func (h *Handler) requesterFor(c *gin.Context, userID uint, object, action string) service.Requester {
	requester := service.Requester{UserID: userID}
	role := handlershared.GetRole(c)
	if role == "" || h.AuthzService == nil {
		return requester
	}
	allowed, err := h.AuthzService.Enforce(role, object, action)
	if err != nil {
		logger.Warnw("subscription_role_override_check_failed",
			"user_id", userID,
			"role", role,
			"object", object,
			"action", action,
			"error", err,
		)
		return requester
	}
	requester.ManageAll = allowed
	return requester
}
