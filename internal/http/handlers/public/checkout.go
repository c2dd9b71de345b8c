package public

import (
	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutRequest 单次资助请求体
type CheckoutRequest struct {
	AnimalID           string       `json:"animalId" validate:"required"`
	AmountInMajorUnits models.Money `json:"amountInMajorUnits"`
	Email              string       `json:"email" validate:"omitempty,email"`
	Name               string       `json:"name" validate:"omitempty,max=120"`
}

func (r CheckoutRequest) toInput() service.CheckoutInput {
	return service.CheckoutInput{
		AnimalID: r.AnimalID,
		Amount:   r.AmountInMajorUnits,
		Email:    r.Email,
		Name:     r.Name,
	}
}

// CreateStripeCheckout 创建 Stripe 托管收银台会话
func (h *Handler) CreateStripeCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := handlershared.BindStrictJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	result, err := h.CheckoutService.StartStripeCheckout(c.Request.Context(), req.toInput())
	if err != nil {
		respondWithMappedError(c, err, checkoutErrorRules)
		return
	}
	response.Success(c, result)
}

// CreateGatewayCheckout 创建银行卡网关跳转地址
func (h *Handler) CreateGatewayCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := handlershared.BindStrictJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	result, err := h.CheckoutService.StartGatewayCheckout(c.Request.Context(), req.toInput())
	if err != nil {
		respondWithMappedError(c, err, checkoutErrorRules)
		return
	}
	response.Success(c, result)
}
