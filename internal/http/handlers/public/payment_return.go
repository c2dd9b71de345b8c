package public

import (
	"net/http"

	"github.com/pawpledge/internal/constants"
	handlershared "github.com/pawpledge/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// GatewayReturn 网关浏览器回跳，验签并对账后跳转结果页
func (h *Handler) GatewayReturn(c *gin.Context) {
	log := handlershared.RequestLog(c)
	if err := c.Request.ParseForm(); err != nil {
		log.Warnw("gateway_return_form_parse_failed", "error", err)
		c.Redirect(http.StatusFound, h.ReconcileService.ResultURL(constants.ReturnStatusFailed, ""))
		return
	}
	log.Infow("gateway_return_received",
		"client_ip", c.ClientIP(),
		"raw_form", callbackRawFormForLog(c.Request.Form),
	)
	target := h.ReconcileService.HandleGatewayReturn(c.Request.Context(), c.Request.Form)
	c.Redirect(http.StatusFound, target)
}

// StripeReturn Stripe 收银台回跳，只读当前状态
func (h *Handler) StripeReturn(c *gin.Context) {
	target, err := h.ReconcileService.HandleStripeReturn(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		handlershared.RequestLog(c).Errorw("stripe_return_lookup_failed", "error", err)
		target = h.ReconcileService.ResultURL(constants.ReturnStatusPending, c.Query("session_id"))
	}
	c.Redirect(http.StatusFound, target)
}
