package public

import (
	"io"
	"net/http"
	"strings"

	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/payment/stripe"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
)

const callbackLogValueLimit = 256

const maxWebhookBodyBytes = 256 << 10

// StripeWebhook Stripe 回调，原始报文参与验签
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := handlershared.RequestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if err != nil {
		log.Warnw("stripe_webhook_body_read_failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(body) > maxWebhookBodyBytes {
		log.Warnw("stripe_webhook_body_too_large", "client_ip", c.ClientIP(), "limit_bytes", maxWebhookBodyBytes)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}
	signatureHeader := strings.TrimSpace(c.GetHeader(stripe.SignatureHeader))
	log.Infow("stripe_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"stripe_signature", truncateCallbackLogValue(signatureHeader),
		"raw_body", callbackRawBodyForLog(body),
	)

	outcome, err := h.ReconcileService.HandleStripeWebhook(c.Request.Context(), signatureHeader, body)
	if err != nil {
		respondWebhookError(c, "stripe_webhook_handle_failed", err)
		return
	}
	log.Infow("stripe_webhook_processed",
		"result", outcome.Result,
		"order_id", outcome.OrderID,
		"status", outcome.Status,
		"ledger_id", outcome.LedgerID,
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GatewayWebhook 银行卡网关异步通知，支持表单与查询参数
func (h *Handler) GatewayWebhook(c *gin.Context) {
	log := handlershared.RequestLog(c)
	if err := c.Request.ParseForm(); err != nil {
		log.Warnw("gateway_webhook_form_parse_failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form body"})
		return
	}
	form := c.Request.Form
	log.Infow("gateway_webhook_received",
		"client_ip", c.ClientIP(),
		"content_type", c.ContentType(),
		"raw_form", callbackRawFormForLog(form),
	)

	outcome, err := h.ReconcileService.HandleGatewayCallback(c.Request.Context(), form)
	if err != nil {
		respondWebhookError(c, "gateway_webhook_handle_failed", err)
		return
	}
	log.Infow("gateway_webhook_processed",
		"result", outcome.Result,
		"order_id", outcome.OrderID,
		"status", outcome.Status,
		"ledger_id", outcome.LedgerID,
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func respondWebhookError(c *gin.Context, event string, err error) {
	code := webhookStatus(err)
	log := handlershared.RequestLog(c)
	if code >= http.StatusInternalServerError {
		log.Errorw(event, "kind", string(service.KindOf(err)), "error", err)
	} else {
		log.Warnw(event, "kind", string(service.KindOf(err)), "error", err)
	}
	c.JSON(code, gin.H{"error": handlershared.ServiceErrorMessage(err)})
}

func truncateCallbackLogValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) <= callbackLogValueLimit {
		return raw
	}
	return raw[:callbackLogValueLimit] + "...(truncated)"
}

func callbackRawBodyForLog(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return truncateCallbackLogValue(string(body))
}

func callbackRawFormForLog(form map[string][]string) map[string]interface{} {
	result := make(map[string]interface{}, len(form))
	for key, values := range form {
		switch len(values) {
		case 0:
			result[key] = ""
		case 1:
			result[key] = truncateCallbackLogValue(values[0])
		default:
			copied := make([]string, 0, len(values))
			for _, value := range values {
				copied = append(copied, truncateCallbackLogValue(value))
			}
			result[key] = copied
		}
	}
	return result
}
