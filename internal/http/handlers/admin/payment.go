package admin

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListPayments 后台支付意图列表
func (h *Handler) ListPayments(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	filter, err := buildPaymentFilter(c, page, pageSize)
	if err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	intents, total, err := h.PaymentQueryService.ListIntents(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, intents, response.BuildPagination(page, pageSize, total))
}

// GetPaymentLedger 支付意图及其结算流水
func (h *Handler) GetPaymentLedger(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "payment id is invalid", nil)
		return
	}
	ledger, err := h.PaymentQueryService.GetIntentLedger(c.Request.Context(), uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, ledger)
}

func buildPaymentFilter(c *gin.Context, page, pageSize int) (repository.PaymentIntentListFilter, error) {
	filter := repository.PaymentIntentListFilter{
		Page:       page,
		PageSize:   pageSize,
		AnimalID:   strings.TrimSpace(c.Query("animal_id")),
		Provider:   strings.ToLower(strings.TrimSpace(c.Query("provider"))),
		Status:     strings.TrimSpace(c.Query("status")),
		PayerEmail: strings.TrimSpace(c.Query("email")),
	}
	from, err := parseDateQuery(c, "created_from")
	if err != nil {
		return filter, err
	}
	to, err := parseDateQuery(c, "created_to")
	if err != nil {
		return filter, err
	}
	filter.CreatedFrom = from
	filter.CreatedTo = to
	return filter, nil
}

// parseDateQuery 支持 RFC3339 或 2006-01-02
func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%s is invalid", key)
	}
	return &t, nil
}
