package public

import (
	"strconv"
	"strings"

	"github.com/pawpledge/internal/constants"
	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateSubscriptionRequest 创建月度资助请求
type CreateSubscriptionRequest struct {
	AnimalID      string       `json:"animalId" validate:"required"`
	MonthlyAmount models.Money `json:"monthlyAmount"`
	Method        string       `json:"method" validate:"required,oneof=card bank_transfer"`
}

// CreateSubscriptionResponse 创建结果，卡支付附带收银台地址
type CreateSubscriptionResponse struct {
	Subscription *models.Subscription `json:"subscription"`
	URL          string               `json:"url,omitempty"`
}

var subscriptionErrorRules = []mappedHandlerError{
	{target: service.ErrProviderUnavailable, code: response.CodeInternal, msg: "card payments are not available"},
}

// CreateSubscription 创建月度资助
func (h *Handler) CreateSubscription(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateSubscriptionRequest
	if err := handlershared.BindStrictJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	subscription, err := h.SubscriptionService.Create(c.Request.Context(), service.CreateSubscriptionInput{
		UserID:        userID,
		AnimalID:      req.AnimalID,
		MonthlyAmount: req.MonthlyAmount,
		Method:        req.Method,
	})
	if err != nil {
		respondWithMappedError(c, err, subscriptionErrorRules)
		return
	}
	resp := CreateSubscriptionResponse{Subscription: subscription}
	if subscription.Method == constants.SubscriptionMethodCard {
		email := ""
		if user, err := h.UserRepo.GetByID(userID); err != nil {
			handlershared.RequestLog(c).Warnw("subscription_checkout_user_lookup_failed", "user_id", userID, "error", err)
		} else if user != nil {
			email = user.Email
		}
		result, err := h.CheckoutService.StartSubscriptionCheckout(c.Request.Context(), subscription, email)
		if err != nil {
			respondWithMappedError(c, err, subscriptionErrorRules)
			return
		}
		resp.URL = result.URL
	}
	response.Success(c, resp)
}

// ListSubscriptions 当前用户的订阅
func (h *Handler) ListSubscriptions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	subscriptions, total, err := h.SubscriptionService.ListForUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, subscriptions, response.BuildPagination(page, pageSize, total))
}

// ListActiveSponsorships 当前用户生效中的资助
func (h *Handler) ListActiveSponsorships(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	items, err := h.SubscriptionService.ListActive(c.Request.Context(), userID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// GetSubscription 订阅详情，本人或具备越权许可的角色可见
func (h *Handler) GetSubscription(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseSubscriptionID(c)
	if !ok {
		return
	}
	requester := h.requesterFor(c, userID, constants.AuthzObjectSubscriptions, constants.AuthzActionReadAny)
	subscription, err := h.SubscriptionService.Get(c.Request.Context(), id, requester)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, subscription)
}

// CancelSubscription 取消订阅
func (h *Handler) CancelSubscription(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseSubscriptionID(c)
	if !ok {
		return
	}
	requester := h.requesterFor(c, userID, constants.AuthzObjectSubscriptions, constants.AuthzActionCancelAny)
	subscription, err := h.SubscriptionService.Cancel(c.Request.Context(), id, requester)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, subscription)
}

func parseSubscriptionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "subscription id is invalid", nil)
		return 0, false
	}
	return uint(id), true
}
