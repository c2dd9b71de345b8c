package service

import (
	"context"
	"errors"
	"time"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/repository"
	"github.com/pawpledge/internal/storage/archive"
)

// ConfirmationMailer 资助确认邮件发送
type ConfirmationMailer interface {
	SendPaymentConfirmation(toEmail string, input PaymentConfirmationEmail) error
}

// PayloadArchiver 原始报文归档
type PayloadArchiver interface {
	Put(ctx context.Context, obj archive.Object) (string, error)
}

// PaymentNotificationService 对账后的异步任务处理：确认邮件与报文归档
type PaymentNotificationService struct {
	ledgerRepo       repository.PledgePaymentRepository
	intentRepo       repository.PaymentIntentRepository
	subscriptionRepo repository.SubscriptionRepository
	animalSvc        *AnimalService
	mailer           ConfirmationMailer
	archiver         PayloadArchiver
	now              func() time.Time
}

// NewPaymentNotificationService 创建通知服务，mailer 与 archiver 可为空
func NewPaymentNotificationService(
	ledgerRepo repository.PledgePaymentRepository,
	intentRepo repository.PaymentIntentRepository,
	subscriptionRepo repository.SubscriptionRepository,
	animalSvc *AnimalService,
	mailer ConfirmationMailer,
	archiver PayloadArchiver,
) *PaymentNotificationService {
	return &PaymentNotificationService{
		ledgerRepo:       ledgerRepo,
		intentRepo:       intentRepo,
		subscriptionRepo: subscriptionRepo,
		animalSvc:        animalSvc,
		mailer:           mailer,
		archiver:         archiver,
		now:              time.Now,
	}
}

// SendPaymentConfirmation 发送资助确认邮件
func (s *PaymentNotificationService) SendPaymentConfirmation(ctx context.Context, ledgerID uint, email string) error {
	if s.mailer == nil {
		return ErrEmailDisabled
	}
	ledger, err := s.ledgerRepo.GetByID(ledgerID)
	if err != nil {
		return ErrPersistFailed.Wrap(err)
	}
	if ledger == nil {
		return ErrPaymentNotFound
	}
	if ledger.Status != constants.PaymentStatusPaid {
		logger.Infow("payment_confirmation_skipped", "ledger_id", ledgerID, "status", ledger.Status)
		return nil
	}

	input := PaymentConfirmationEmail{
		Amount:   ledger.Amount,
		Currency: ledger.Currency,
		OrderID:  ledger.ProviderID,
	}
	var animalID string
	switch ledger.PledgeKind {
	case constants.PledgeKindIntent:
		intent, err := s.intentRepo.GetByID(ledger.PledgeID)
		if err != nil {
			return ErrPersistFailed.Wrap(err)
		}
		if intent != nil {
			animalID = intent.AnimalID
			input.PayerName = intent.PayerName
			input.Monthly = intent.SubscriptionID != nil
			if email == "" {
				email = intent.PayerEmail
			}
		}
	case constants.PledgeKindSubscription:
		input.Monthly = true
		subscription, err := s.subscriptionRepo.GetByID(ledger.PledgeID)
		if err != nil {
			return ErrPersistFailed.Wrap(err)
		}
		if subscription != nil {
			animalID = subscription.AnimalID
		}
	}
	if email == "" {
		logger.Warnw("payment_confirmation_no_recipient", "ledger_id", ledgerID)
		return nil
	}
	if animalID != "" && s.animalSvc != nil {
		animal, err := s.animalSvc.Get(ctx, animalID)
		if err != nil && !errors.Is(err, ErrAnimalNotFound) {
			return err
		}
		if animal != nil {
			input.AnimalName = animal.Name
		}
	}

	if err := s.mailer.SendPaymentConfirmation(email, input); err != nil {
		logger.Warnw("payment_confirmation_send_failed", "ledger_id", ledgerID, "error", err)
		return err
	}
	logger.Infow("payment_confirmation_sent", "ledger_id", ledgerID)
	return nil
}

// ArchivePayload 归档流水的原始回调报文
func (s *PaymentNotificationService) ArchivePayload(ctx context.Context, ledgerID uint) error {
	if s.archiver == nil {
		return nil
	}
	ledger, err := s.ledgerRepo.GetByID(ledgerID)
	if err != nil {
		return ErrPersistFailed.Wrap(err)
	}
	if ledger == nil {
		return ErrPaymentNotFound
	}
	if ledger.ArchivedAt != nil || ledger.RawProviderPayload == "" {
		return nil
	}
	key, err := s.archiver.Put(ctx, archive.Object{
		Provider:   ledger.Provider,
		LedgerID:   ledger.ID,
		OccurredAt: ledger.CreatedAt,
		Body:       []byte(ledger.RawProviderPayload),
	})
	if err != nil {
		return ErrArchiveUnavailable.Wrap(err)
	}
	if err := s.ledgerRepo.MarkArchived(ledger.ID, s.now()); err != nil {
		return ErrPersistFailed.Wrap(err)
	}
	logger.Infow("payment_payload_archived", "ledger_id", ledger.ID, "key", key)
	return nil
}

var (
	_ ConfirmationMailer = (*EmailService)(nil)
	_ PayloadArchiver    = (*archive.S3Archiver)(nil)
)
