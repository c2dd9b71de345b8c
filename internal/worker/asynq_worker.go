package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/provider"
	"github.com/pawpledge/internal/queue"
	"github.com/pawpledge/internal/service"

	"github.com/hibiken/asynq"
)

// PaymentTaskHandler 对账后续任务的业务实现
type PaymentTaskHandler interface {
	SendPaymentConfirmation(ctx context.Context, ledgerID uint, email string) error
	ArchivePayload(ctx context.Context, ledgerID uint) error
}

// Consumer 异步任务消费者
type Consumer struct {
	Payments PaymentTaskHandler
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	if c == nil || c.NotificationService == nil {
		return &Consumer{}
	}
	return &Consumer{Payments: c.NotificationService}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentConfirmationEmail, c.handlePaymentConfirmation)
	mux.HandleFunc(queue.TaskPaymentArchivePayload, c.handlePayloadArchive)
}

func (c *Consumer) handlePaymentConfirmation(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_confirmation_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_confirmation_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.LedgerID == 0 {
		logger.Debugw("worker_payment_confirmation_skip_invalid_payload", "ledger_id", payload.LedgerID)
		return nil
	}
	if c.Payments == nil {
		logger.Warnw("worker_payment_confirmation_skip_handler_nil", "ledger_id", payload.LedgerID)
		return nil
	}
	err := c.Payments.SendPaymentConfirmation(ctx, payload.LedgerID, payload.Email)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrPaymentNotFound):
		logger.Debugw("worker_payment_confirmation_skip_ledger_not_found", "ledger_id", payload.LedgerID)
		return nil
	case errors.Is(err, service.ErrEmailDisabled), errors.Is(err, service.ErrEmailNotConfigured):
		logger.Debugw("worker_payment_confirmation_skip_email_disabled", "ledger_id", payload.LedgerID)
		return nil
	case errors.Is(err, service.ErrEmailRecipientRejected), errors.Is(err, service.ErrInvalidEmail):
		logger.Warnw("worker_payment_confirmation_recipient_rejected", "ledger_id", payload.LedgerID, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		logger.Warnw("worker_payment_confirmation_failed", "ledger_id", payload.LedgerID, "error", err)
		return err
	}
}

func (c *Consumer) handlePayloadArchive(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payload_archive_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PayloadArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payload_archive_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.LedgerID == 0 {
		logger.Debugw("worker_payload_archive_skip_invalid_payload", "ledger_id", payload.LedgerID)
		return nil
	}
	if c.Payments == nil {
		logger.Warnw("worker_payload_archive_skip_handler_nil", "ledger_id", payload.LedgerID)
		return nil
	}
	err := c.Payments.ArchivePayload(ctx, payload.LedgerID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrPaymentNotFound):
		logger.Debugw("worker_payload_archive_skip_ledger_not_found", "ledger_id", payload.LedgerID)
		return nil
	default:
		logger.Warnw("worker_payload_archive_failed", "ledger_id", payload.LedgerID, "error", err)
		return err
	}
}
