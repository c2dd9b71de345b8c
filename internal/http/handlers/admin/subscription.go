package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListSubscriptions 后台订阅列表
func (h *Handler) ListSubscriptions(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	filter := repository.SubscriptionListFilter{
		Page:     page,
		PageSize: pageSize,
		AnimalID: strings.TrimSpace(c.Query("animal_id")),
		Status:   strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "user_id is invalid", nil)
			return
		}
		filter.UserID = uint(userID)
	}

	subscriptions, total, err := h.SubscriptionService.ListAll(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, subscriptions, response.BuildPagination(page, pageSize, total))
}
