package queue

import (
	"encoding/json"

	"github.com/pawpledge/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentConfirmationEmail 资助确认邮件任务
	TaskPaymentConfirmationEmail = constants.TaskPaymentConfirmationMail
	// TaskPaymentArchivePayload 原始回调报文归档任务
	TaskPaymentArchivePayload = constants.TaskPaymentArchivePayload
)

// PaymentConfirmationPayload 资助确认邮件任务载荷
type PaymentConfirmationPayload struct {
	LedgerID uint   `json:"ledger_id"`
	Email    string `json:"email,omitempty"`
}

// PayloadArchivePayload 报文归档任务载荷
type PayloadArchivePayload struct {
	LedgerID uint `json:"ledger_id"`
}

// NewPaymentConfirmationTask 创建资助确认邮件任务
func NewPaymentConfirmationTask(payload PaymentConfirmationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentConfirmationEmail, body), nil
}

// NewPayloadArchiveTask 创建报文归档任务
func NewPayloadArchiveTask(payload PayloadArchivePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentArchivePayload, body), nil
}
