package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/payment/gateway"
	"github.com/pawpledge/internal/payment/stripe"
	"github.com/pawpledge/internal/queue"
	"github.com/pawpledge/internal/repository"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const rawBodyLogLimit = 512

// StripeWebhookParser Stripe 回调验签与解析
type StripeWebhookParser interface {
	ParseWebhook(body []byte, signatureHeader string) (*stripe.WebhookEvent, error)
}

// GatewayCallbackVerifier 网关回调验签
type GatewayCallbackVerifier interface {
	VerifyCallback(values url.Values) (*gateway.CallbackResult, error)
}

// PaymentTaskQueue 对账后的异步任务
type PaymentTaskQueue interface {
	EnqueuePaymentConfirmation(payload queue.PaymentConfirmationPayload, opts ...asynq.Option) error
	EnqueuePayloadArchive(payload queue.PayloadArchivePayload, opts ...asynq.Option) error
}

// ReconcileService 回调与回跳对账服务
type ReconcileService struct {
	db               *gorm.DB
	intentRepo       repository.PaymentIntentRepository
	subscriptionRepo repository.SubscriptionRepository
	ledgerRepo       repository.PledgePaymentRepository
	webhookRepo      repository.WebhookEventRepository
	stripe           StripeWebhookParser
	gateway          GatewayCallbackVerifier
	tasks            PaymentTaskQueue
	returnCfg        config.ReturnConfig
	now              func() time.Time
}

// ReconcileDeps 对账服务依赖，未配置的提供方留空
type ReconcileDeps struct {
	DB               *gorm.DB
	IntentRepo       repository.PaymentIntentRepository
	SubscriptionRepo repository.SubscriptionRepository
	LedgerRepo       repository.PledgePaymentRepository
	WebhookRepo      repository.WebhookEventRepository
	Stripe           StripeWebhookParser
	Gateway          GatewayCallbackVerifier
	Tasks            PaymentTaskQueue
	Return           config.ReturnConfig
}

// NewReconcileService 创建对账服务
func NewReconcileService(deps ReconcileDeps) *ReconcileService {
	if strings.TrimSpace(deps.Return.ResultPath) == "" {
		deps.Return.ResultPath = "/donate/result"
	}
	db := deps.DB
	if db == nil {
		db = models.DB
	}
	return &ReconcileService{
		db:               db,
		intentRepo:       deps.IntentRepo,
		subscriptionRepo: deps.SubscriptionRepo,
		ledgerRepo:       deps.LedgerRepo,
		webhookRepo:      deps.WebhookRepo,
		stripe:           deps.Stripe,
		gateway:          deps.Gateway,
		tasks:            deps.Tasks,
		returnCfg:        deps.Return,
		now:              time.Now,
	}
}

// ReconcileOutcome 单次回调的处理结果
type ReconcileOutcome struct {
	Result   string
	Provider string
	OrderID  string
	IntentID uint
	Status   string
	LedgerID uint
}

// providerNotice 各提供方回调归一化后的通知
type providerNotice struct {
	Provider        string
	EventID         string
	EventType       string
	OrderID         string
	AnimalID        string
	AmountMinor     int64
	Currency        string
	Status          string
	Email           string
	Name            string
	IntentHint      uint
	SubscriptionID  uint
	SubscriptionRef string
	Raw             string
}

// pendingTasks 事务提交后才投递的任务
type pendingTasks struct {
	ledgerID uint
	email    string
	paid     bool
}

func reconcileLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// HandleStripeWebhook 处理 Stripe 回调
func (s *ReconcileService) HandleStripeWebhook(ctx context.Context, signatureHeader string, body []byte) (*ReconcileOutcome, error) {
	if s.stripe == nil {
		return nil, ErrProviderUnavailable
	}
	event, err := s.stripe.ParseWebhook(body, signatureHeader)
	if err != nil {
		if errors.Is(err, stripe.ErrPayloadInvalid) {
			reconcileLogger("provider", constants.PaymentProviderStripe).Warnw("webhook_payload_invalid",
				"error", err,
				"raw", truncateRaw(string(body)),
			)
			return nil, ErrCallbackInvalid.Wrap(err)
		}
		reconcileLogger("provider", constants.PaymentProviderStripe).Warnw("webhook_signature_invalid",
			"error", err,
			"raw", truncateRaw(string(body)),
		)
		return nil, ErrSignatureInvalid.Wrap(err)
	}

	switch event.Kind {
	case stripe.EventKindCheckout:
		if event.OrderID == "" {
			return nil, ErrCallbackInvalid
		}
		return s.reconcileIntent(ctx, providerNotice{
			Provider:        constants.PaymentProviderStripe,
			EventID:         event.EventID,
			EventType:       event.EventType,
			OrderID:         event.OrderID,
			AnimalID:        event.AnimalID,
			AmountMinor:     event.AmountMinor,
			Currency:        event.Currency,
			Status:          event.Status,
			Email:           event.Email,
			Name:            event.Name,
			IntentHint:      event.PaymentIntentID(),
			SubscriptionID:  event.SubscriptionID(),
			SubscriptionRef: event.SubscriptionRef,
			Raw:             string(body),
		})
	case stripe.EventKindRenewal:
		return s.reconcileRenewal(ctx, event, string(body))
	case stripe.EventKindSubscriptionCanceled:
		return s.reconcileProviderCancel(ctx, event)
	default:
		s.recordEvent(constants.PaymentProviderStripe, event.EventID, event.EventType, event.OrderID, constants.WebhookResultIgnored)
		reconcileLogger("provider", constants.PaymentProviderStripe).Infow("webhook_event_ignored",
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
		return &ReconcileOutcome{Result: constants.WebhookResultIgnored, Provider: constants.PaymentProviderStripe}, nil
	}
}

// HandleGatewayCallback 处理银行卡网关通知与浏览器回跳
func (s *ReconcileService) HandleGatewayCallback(ctx context.Context, form url.Values) (*ReconcileOutcome, error) {
	if s.gateway == nil {
		return nil, ErrProviderUnavailable
	}
	result, err := s.gateway.VerifyCallback(form)
	if err != nil {
		if errors.Is(err, gateway.ErrCallbackInvalid) {
			reconcileLogger("provider", constants.PaymentProviderGateway).Warnw("webhook_payload_invalid",
				"error", err,
				"raw", truncateRaw(form.Encode()),
			)
			return nil, ErrCallbackInvalid.Wrap(err)
		}
		reconcileLogger("provider", constants.PaymentProviderGateway).Warnw("webhook_signature_invalid",
			"error", err,
			"raw", truncateRaw(form.Encode()),
		)
		return nil, ErrSignatureInvalid.Wrap(err)
	}
	hint, _ := strconv.ParseUint(strings.TrimSpace(result.MerchantData), 10, 64)
	return s.reconcileIntent(ctx, providerNotice{
		Provider:    constants.PaymentProviderGateway,
		EventID:     fmt.Sprintf("%s:%s:%s", result.OrderNumber, result.PRCode, result.SRCode),
		EventType:   "gateway.callback",
		OrderID:     result.OrderNumber,
		AmountMinor: result.AmountMinor,
		Currency:    result.Currency,
		Status:      result.Status,
		IntentHint:  uint(hint),
		Raw:         form.Encode(),
	})
}

// HandleGatewayReturn 处理网关浏览器回跳并返回结果页地址，验签失败时不修改任何记录
func (s *ReconcileService) HandleGatewayReturn(ctx context.Context, form url.Values) string {
	orderID := strings.TrimSpace(form.Get(gateway.ParamOrderNumber))
	outcome, err := s.HandleGatewayCallback(ctx, form)
	if err != nil {
		return s.ResultURL(constants.ReturnStatusFailed, orderID)
	}
	return s.ResultURL(returnStatusOf(outcome.Status), outcome.OrderID)
}

// HandleStripeReturn 根据会话 ID 返回结果页地址，只读
func (s *ReconcileService) HandleStripeReturn(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return s.ResultURL(constants.ReturnStatusFailed, ""), nil
	}
	intent, err := s.intentRepo.GetByProviderOrder(constants.PaymentProviderStripe, sessionID)
	if err != nil {
		return "", ErrPersistFailed.Wrap(err)
	}
	if intent == nil {
		return s.ResultURL(constants.ReturnStatusPending, sessionID), nil
	}
	return s.ResultURL(returnStatusOf(intent.Status), sessionID), nil
}

// ResultURL 构造前端结果页地址
func (s *ReconcileService) ResultURL(status, orderID string) string {
	query := url.Values{}
	query.Set("status", status)
	if orderID != "" {
		query.Set("order", orderID)
	}
	return s.returnCfg.FrontendURL + s.returnCfg.ResultPath + "?" + query.Encode()
}

func (s *ReconcileService) reconcileIntent(ctx context.Context, notice providerNotice) (*ReconcileOutcome, error) {
	log := reconcileLogger("provider", notice.Provider, "order_id", notice.OrderID, "event_id", notice.EventID)
	now := s.now()
	outcome := &ReconcileOutcome{Provider: notice.Provider, OrderID: notice.OrderID, Status: notice.Status}
	var tasks *pendingTasks

	err := s.db.Transaction(func(tx *gorm.DB) error {
		intentRepo := s.intentRepo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		intent, created, err := s.locateIntent(intentRepo, notice, now)
		if err != nil {
			return err
		}
		outcome.IntentID = intent.ID

		if !created {
			if constants.IsPaymentTerminal(intent.Status) {
				outcome.Result = constants.WebhookResultIdempotent
				outcome.Status = intent.Status
				log.Infow("payment_callback_idempotent", "intent_id", intent.ID, "status", intent.Status)
				return nil
			}
			updates := s.transitionUpdates(intent, notice, now, log)
			applied, err := intentRepo.TransitionStatus(intent.ID, updates)
			if err != nil {
				return err
			}
			if !applied {
				current, err := intentRepo.GetByID(intent.ID)
				if err != nil {
					return err
				}
				if current != nil {
					outcome.Status = current.Status
				}
				outcome.Result = constants.WebhookResultIdempotent
				log.Infow("payment_callback_idempotent", "intent_id", intent.ID, "reason", "concurrent_update")
				return nil
			}
		} else {
			log.Warnw("payment_callback_unknown_order_upserted", "intent_id", intent.ID, "status", intent.Status)
		}
		outcome.Result = constants.WebhookResultProcessed
		outcome.Status = notice.Status

		if !constants.IsPaymentTerminal(notice.Status) {
			return nil
		}
		amount, currency := s.settledAmount(intent, notice)
		ledger := &models.PledgePayment{
			PledgeKind:         constants.PledgeKindIntent,
			PledgeID:           intent.ID,
			ProviderID:         notice.OrderID,
			Provider:           notice.Provider,
			Status:             notice.Status,
			Amount:             amount,
			Currency:           currency,
			RawProviderPayload: notice.Raw,
		}
		appended, err := ledgerRepo.Append(ledger)
		if err != nil {
			return err
		}
		if appended {
			outcome.LedgerID = ledger.ID
			email := intent.PayerEmail
			if email == "" {
				email = notice.Email
			}
			tasks = &pendingTasks{ledgerID: ledger.ID, email: email, paid: notice.Status == constants.PaymentStatusPaid}
		}

		if notice.Status == constants.PaymentStatusPaid {
			subscriptionID := notice.SubscriptionID
			if intent.SubscriptionID != nil {
				subscriptionID = *intent.SubscriptionID
			}
			if subscriptionID > 0 {
				if err := s.promoteSubscription(tx, subscriptionID, notice.SubscriptionRef, now, log); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Errorw("payment_callback_persist_failed", "error", err)
		return nil, ErrPersistFailed.Wrap(err)
	}

	s.recordEvent(notice.Provider, notice.EventID, notice.EventType, notice.OrderID, outcome.Result)
	s.dispatch(tasks, log)
	log.Infow("payment_callback_reconciled",
		"intent_id", outcome.IntentID,
		"status", outcome.Status,
		"result", outcome.Result,
	)
	return outcome, nil
}

// locateIntent 定位本地支付意图，未知单号时按提供方数据补建
func (s *ReconcileService) locateIntent(intentRepo repository.PaymentIntentRepository, notice providerNotice, now time.Time) (*models.PaymentIntent, bool, error) {
	intent, err := intentRepo.GetByProviderOrder(notice.Provider, notice.OrderID)
	if err != nil {
		return nil, false, err
	}
	if intent != nil {
		return intent, false, nil
	}

	if notice.IntentHint > 0 {
		hinted, err := intentRepo.GetByID(notice.IntentHint)
		if err != nil {
			return nil, false, err
		}
		if hinted != nil && hinted.Provider == notice.Provider && hinted.OrderID() == "" {
			assigned, err := intentRepo.AssignProviderOrder(hinted.ID, notice.OrderID, map[string]interface{}{"updated_at": now})
			if err != nil {
				return nil, false, err
			}
			if assigned {
				orderID := notice.OrderID
				hinted.ProviderOrderID = &orderID
				return hinted, false, nil
			}
		}
	}

	currency := notice.Currency
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	orderID := notice.OrderID
	candidate := &models.PaymentIntent{
		AnimalID:        notice.AnimalID,
		PayerEmail:      notice.Email,
		PayerName:       notice.Name,
		Amount:          models.NewMoneyFromMinor(notice.AmountMinor, currency),
		AmountMinor:     notice.AmountMinor,
		Currency:        currency,
		Provider:        notice.Provider,
		ProviderOrderID: &orderID,
		Status:          notice.Status,
		ProviderPayload: noticePayload(notice),
		CallbackAt:      &now,
	}
	if notice.SubscriptionID > 0 {
		subscriptionID := notice.SubscriptionID
		candidate.SubscriptionID = &subscriptionID
	}
	if notice.Status == constants.PaymentStatusPaid {
		candidate.PaidAt = &now
	}
	return intentRepo.UpsertByProviderOrder(candidate)
}

func (s *ReconcileService) transitionUpdates(intent *models.PaymentIntent, notice providerNotice, now time.Time, log *zap.SugaredLogger) map[string]interface{} {
	updates := map[string]interface{}{
		"status":           notice.Status,
		"callback_at":      now,
		"updated_at":       now,
		"provider_payload": noticePayload(notice),
	}
	if notice.Status == constants.PaymentStatusPaid {
		updates["paid_at"] = now
	}
	if notice.AmountMinor > 0 && notice.AmountMinor != intent.AmountMinor {
		currency := intent.Currency
		if notice.Currency != "" {
			currency = notice.Currency
		}
		log.Warnw("payment_amount_mismatch",
			"intent_id", intent.ID,
			"local_amount_minor", intent.AmountMinor,
			"provider_amount_minor", notice.AmountMinor,
		)
		updates["amount"] = models.NewMoneyFromMinor(notice.AmountMinor, currency)
		updates["amount_minor"] = notice.AmountMinor
		updates["currency"] = currency
	}
	if intent.PayerEmail == "" && notice.Email != "" {
		updates["payer_email"] = notice.Email
	}
	if intent.PayerName == "" && notice.Name != "" {
		updates["payer_name"] = notice.Name
	}
	return updates
}

// settledAmount 以提供方金额为准，缺失时回退本地金额
func (s *ReconcileService) settledAmount(intent *models.PaymentIntent, notice providerNotice) (models.Money, string) {
	currency := intent.Currency
	if notice.Currency != "" {
		currency = notice.Currency
	}
	if notice.AmountMinor > 0 {
		return models.NewMoneyFromMinor(notice.AmountMinor, currency), currency
	}
	return intent.Amount, currency
}

func (s *ReconcileService) promoteSubscription(tx *gorm.DB, subscriptionID uint, providerRef string, now time.Time, log *zap.SugaredLogger) error {
	subscriptionRepo := s.subscriptionRepo.WithTx(tx)
	subscription, err := subscriptionRepo.GetByID(subscriptionID)
	if err != nil {
		return err
	}
	if subscription == nil {
		log.Warnw("subscription_promote_missing", "subscription_id", subscriptionID)
		return nil
	}
	if providerRef != "" {
		if err := subscriptionRepo.BindProviderSubscription(subscription.ID, constants.PaymentProviderStripe, providerRef); err != nil {
			return err
		}
	}
	if subscription.Status != constants.SubscriptionStatusPending {
		return nil
	}
	next, err := NextMonthlyCharge(now, now)
	if err != nil {
		log.Warnw("subscription_next_charge_compute_failed", "subscription_id", subscription.ID, "error", err)
	}
	activated, err := subscriptionRepo.Activate(subscription.ID, now, next)
	if err != nil {
		return err
	}
	if activated {
		log.Infow("subscription_activated", "subscription_id", subscription.ID)
	}
	return nil
}

func (s *ReconcileService) reconcileRenewal(ctx context.Context, event *stripe.WebhookEvent, raw string) (*ReconcileOutcome, error) {
	log := reconcileLogger("provider", constants.PaymentProviderStripe, "order_id", event.OrderID, "event_id", event.EventID)
	now := s.now()
	outcome := &ReconcileOutcome{Provider: constants.PaymentProviderStripe, OrderID: event.OrderID, Status: event.Status}
	var tasks *pendingTasks

	err := s.db.Transaction(func(tx *gorm.DB) error {
		subscriptionRepo := s.subscriptionRepo.WithTx(tx)
		subscription, err := s.findProviderSubscription(subscriptionRepo, event)
		if err != nil {
			return err
		}
		if subscription == nil {
			outcome.Result = constants.WebhookResultIgnored
			log.Warnw("subscription_renewal_unknown", "subscription_ref", event.SubscriptionRef)
			return nil
		}
		if event.SubscriptionRef != "" {
			if err := subscriptionRepo.BindProviderSubscription(subscription.ID, constants.PaymentProviderStripe, event.SubscriptionRef); err != nil {
				return err
			}
		}
		anchor := now
		if subscription.ActivatedAt != nil {
			anchor = *subscription.ActivatedAt
		}
		next, err := NextMonthlyCharge(anchor, now)
		if err != nil {
			log.Warnw("subscription_next_charge_compute_failed", "subscription_id", subscription.ID, "error", err)
		}
		switch subscription.Status {
		case constants.SubscriptionStatusPending:
			if _, err := subscriptionRepo.Activate(subscription.ID, now, next); err != nil {
				return err
			}
		case constants.SubscriptionStatusActive:
			if err := subscriptionRepo.UpdateNextCharge(subscription.ID, next); err != nil {
				return err
			}
		}

		if event.BillingReason == stripe.BillingReasonSubscriptionCreate {
			outcome.Result = constants.WebhookResultProcessed
			return nil
		}
		currency := subscription.Currency
		if event.Currency != "" {
			currency = event.Currency
		}
		ledger := &models.PledgePayment{
			PledgeKind:         constants.PledgeKindSubscription,
			PledgeID:           subscription.ID,
			ProviderID:         event.OrderID,
			Provider:           constants.PaymentProviderStripe,
			Status:             constants.PaymentStatusPaid,
			Amount:             models.NewMoneyFromMinor(event.AmountMinor, currency),
			Currency:           currency,
			RawProviderPayload: raw,
		}
		appended, err := s.ledgerRepo.WithTx(tx).Append(ledger)
		if err != nil {
			return err
		}
		if !appended {
			outcome.Result = constants.WebhookResultIdempotent
			return nil
		}
		outcome.Result = constants.WebhookResultProcessed
		outcome.LedgerID = ledger.ID
		tasks = &pendingTasks{ledgerID: ledger.ID, email: event.Email, paid: true}
		return nil
	})
	if err != nil {
		log.Errorw("subscription_renewal_persist_failed", "error", err)
		return nil, ErrPersistFailed.Wrap(err)
	}
	s.recordEvent(constants.PaymentProviderStripe, event.EventID, event.EventType, event.OrderID, outcome.Result)
	s.dispatch(tasks, log)
	return outcome, nil
}

func (s *ReconcileService) reconcileProviderCancel(ctx context.Context, event *stripe.WebhookEvent) (*ReconcileOutcome, error) {
	log := reconcileLogger("provider", constants.PaymentProviderStripe, "event_id", event.EventID)
	outcome := &ReconcileOutcome{
		Provider: constants.PaymentProviderStripe,
		OrderID:  event.SubscriptionRef,
		Status:   constants.SubscriptionStatusCanceled,
		Result:   constants.WebhookResultIgnored,
	}
	subscription, err := s.findProviderSubscription(s.subscriptionRepo, event)
	if err != nil {
		return nil, ErrPersistFailed.Wrap(err)
	}
	if subscription != nil {
		canceled, err := s.subscriptionRepo.Cancel(subscription.ID, s.now())
		if err != nil {
			return nil, ErrPersistFailed.Wrap(err)
		}
		outcome.Result = constants.WebhookResultIdempotent
		if canceled {
			outcome.Result = constants.WebhookResultProcessed
			log.Infow("subscription_canceled_by_provider", "subscription_id", subscription.ID)
		}
	}
	s.recordEvent(constants.PaymentProviderStripe, event.EventID, event.EventType, event.SubscriptionRef, outcome.Result)
	return outcome, nil
}

func (s *ReconcileService) findProviderSubscription(subscriptionRepo repository.SubscriptionRepository, event *stripe.WebhookEvent) (*models.Subscription, error) {
	if event.SubscriptionRef != "" {
		subscription, err := subscriptionRepo.GetByProviderSubscriptionID(event.SubscriptionRef)
		if err != nil || subscription != nil {
			return subscription, err
		}
	}
	if id := event.SubscriptionID(); id > 0 {
		return subscriptionRepo.GetByID(id)
	}
	return nil, nil
}

// recordEvent 记录投递次数，失败不影响对账结果
func (s *ReconcileService) recordEvent(provider, eventID, eventType, orderID, result string) {
	if s.webhookRepo == nil || strings.TrimSpace(eventID) == "" {
		return
	}
	if _, err := s.webhookRepo.Record(&models.WebhookEvent{
		Provider:    provider,
		EventID:     eventID,
		EventType:   eventType,
		OrderID:     orderID,
		Result:      result,
		ProcessedAt: s.now(),
	}); err != nil {
		logger.Warnw("webhook_event_record_failed", "provider", provider, "event_id", eventID, "error", err)
	}
}

// dispatch 投递邮件与归档任务，失败只记录告警
func (s *ReconcileService) dispatch(tasks *pendingTasks, log *zap.SugaredLogger) {
	if tasks == nil || s.tasks == nil {
		return
	}
	if err := s.tasks.EnqueuePayloadArchive(queue.PayloadArchivePayload{LedgerID: tasks.ledgerID}); err != nil {
		log.Warnw("payment_archive_enqueue_failed", "ledger_id", tasks.ledgerID, "error", err)
	}
	if !tasks.paid || tasks.email == "" {
		return
	}
	if err := s.tasks.EnqueuePaymentConfirmation(queue.PaymentConfirmationPayload{LedgerID: tasks.ledgerID, Email: tasks.email}); err != nil {
		log.Warnw("payment_confirmation_enqueue_failed", "ledger_id", tasks.ledgerID, "error", err)
	}
}

func noticePayload(notice providerNotice) models.JSON {
	return models.JSON{
		"event_id":     notice.EventID,
		"event_type":   notice.EventType,
		"status":       notice.Status,
		"amount_minor": notice.AmountMinor,
		"currency":     notice.Currency,
	}
}

func returnStatusOf(paymentStatus string) string {
	switch paymentStatus {
	case constants.PaymentStatusPaid:
		return constants.ReturnStatusSuccess
	case constants.PaymentStatusFailed:
		return constants.ReturnStatusFailed
	case constants.PaymentStatusCanceled:
		return constants.ReturnStatusCanceled
	default:
		return constants.ReturnStatusPending
	}
}

func truncateRaw(raw string) string {
	if len(raw) <= rawBodyLogLimit {
		return raw
	}
	return raw[:rawBodyLogLimit] + "...(truncated)"
}
