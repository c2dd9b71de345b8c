package provider

import (
	"context"
	"time"

	"github.com/pawpledge/internal/authz"
	"github.com/pawpledge/internal/cache"
	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/models"
	"github.com/pawpledge/internal/payment/gateway"
	"github.com/pawpledge/internal/payment/stripe"
	"github.com/pawpledge/internal/queue"
	"github.com/pawpledge/internal/repository"
	"github.com/pawpledge/internal/service"
	"github.com/pawpledge/internal/storage/archive"

	"github.com/shopspring/decimal"
)

const archiveInitTimeout = 10 * time.Second

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Payment providers，未配置时为 nil
	StripeClient  *stripe.Client
	GatewayClient *gateway.Client
	Archiver      *archive.S3Archiver

	// Repositories
	UserRepo          repository.UserRepository
	AnimalRepo        repository.AnimalRepository
	PaymentIntentRepo repository.PaymentIntentRepository
	SubscriptionRepo  repository.SubscriptionRepository
	PledgePaymentRepo repository.PledgePaymentRepository
	WebhookEventRepo  repository.WebhookEventRepository
	AuthzAuditRepo    repository.AuthzAuditLogRepository

	// Services
	AuthzService        *authz.Service
	AuthzAuditService   *service.AuthzAuditService
	AuthService         *service.AuthService
	EmailService        *service.EmailService
	AnimalService       *service.AnimalService
	CheckoutService     *service.CheckoutService
	ReconcileService    *service.ReconcileService
	SubscriptionService *service.SubscriptionService
	PaymentQueryService *service.PaymentQueryService
	NotificationService *service.PaymentNotificationService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化支付提供方与归档
	c.initProviders()

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.AnimalRepo = repository.NewAnimalRepository(db)
	c.PaymentIntentRepo = repository.NewPaymentIntentRepository(db)
	c.SubscriptionRepo = repository.NewSubscriptionRepository(db)
	c.PledgePaymentRepo = repository.NewPledgePaymentRepository(db)
	c.WebhookEventRepo = repository.NewWebhookEventRepository(db)
	c.AuthzAuditRepo = repository.NewAuthzAuditLogRepository(db)
}

func (c *Container) initProviders() {
	paymentCfg := c.Config.Payment
	if paymentCfg.Stripe.SecretKey != "" {
		client, err := stripe.NewClient(stripe.Config{
			SecretKey:     paymentCfg.Stripe.SecretKey,
			WebhookSecret: paymentCfg.Stripe.WebhookSecret,
			SuccessURL:    paymentCfg.Stripe.SuccessURL,
			CancelURL:     paymentCfg.Stripe.CancelURL,
			Currency:      paymentCfg.Stripe.Currency,
			Timeout:       time.Duration(paymentCfg.Stripe.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Errorw("provider_init_stripe_failed", "error", err)
		} else {
			c.StripeClient = client
		}
	} else {
		logger.Warnw("provider_stripe_not_configured")
	}

	if paymentCfg.Gateway.URL != "" {
		client, err := gateway.NewClient(gateway.Config{
			GatewayURL:            paymentCfg.Gateway.URL,
			MerchantNumber:        paymentCfg.Gateway.MerchantNumber,
			MerchantPrivateKey:    paymentCfg.Gateway.MerchantPrivateKey,
			MerchantKeyPassphrase: paymentCfg.Gateway.MerchantKeyPassphrase,
			GatewayPublicKey:      paymentCfg.Gateway.GatewayPublicKey,
			SignAlgorithm:         paymentCfg.Gateway.SignAlgorithm,
			Currency:              paymentCfg.Gateway.Currency,
			DepositFlag:           paymentCfg.Gateway.DepositFlag,
			ReturnURL:             paymentCfg.Gateway.ReturnURL,
		})
		if err != nil {
			logger.Errorw("provider_init_gateway_failed", "error", err)
		} else {
			c.GatewayClient = client
		}
	} else {
		logger.Warnw("provider_gateway_not_configured")
	}

	if c.Config.Archive.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), archiveInitTimeout)
		defer cancel()
		archiver, err := archive.New(ctx, c.Config.Archive)
		if err != nil {
			logger.Errorw("provider_init_archive_failed", "error", err)
		} else {
			c.Archiver = archiver
		}
	}
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	c.AuthzAuditService = service.NewAuthzAuditService(c.AuthzAuditRepo)
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AuthService = service.NewAuthService(c.Config.JWT, c.UserRepo)
	c.AuthService.SetPasswordPolicy(c.Config.Security.PasswordPolicy)
	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.AnimalService = service.NewAnimalService(c.AnimalRepo)
	c.SubscriptionService = service.NewSubscriptionService(c.SubscriptionRepo, c.AnimalService, c.Config.Payment.Stripe.Currency)
	c.PaymentQueryService = service.NewPaymentQueryService(c.PaymentIntentRepo, c.PledgePaymentRepo)
	c.CheckoutService = service.NewCheckoutService(
		c.PaymentIntentRepo,
		c.AnimalService,
		c.stripeCheckout(),
		c.gatewayRedirector(),
		gatewayMinAmount(c.Config.Payment.Gateway.MinAmount),
	)

	deps := service.ReconcileDeps{
		DB:               models.DB,
		IntentRepo:       c.PaymentIntentRepo,
		SubscriptionRepo: c.SubscriptionRepo,
		LedgerRepo:       c.PledgePaymentRepo,
		WebhookRepo:      c.WebhookEventRepo,
		Return:           c.Config.Payment.Return,
	}
	if c.StripeClient != nil {
		deps.Stripe = c.StripeClient
	}
	if c.GatewayClient != nil {
		deps.Gateway = c.GatewayClient
	}
	if c.QueueClient.Enabled() {
		deps.Tasks = c.QueueClient
	}
	c.ReconcileService = service.NewReconcileService(deps)

	var mailer service.ConfirmationMailer
	if c.Config.Email.Enabled {
		mailer = c.EmailService
	}
	var archiver service.PayloadArchiver
	if c.Archiver != nil {
		archiver = c.Archiver
	}
	c.NotificationService = service.NewPaymentNotificationService(
		c.PledgePaymentRepo,
		c.PaymentIntentRepo,
		c.SubscriptionRepo,
		c.AnimalService,
		mailer,
		archiver,
	)
}

// stripeCheckout 未配置时返回 nil 接口
func (c *Container) stripeCheckout() service.StripeCheckout {
	if c.StripeClient == nil {
		return nil
	}
	return c.StripeClient
}

func (c *Container) gatewayRedirector() service.GatewayRedirector {
	if c.GatewayClient == nil {
		return nil
	}
	return c.GatewayClient
}

func gatewayMinAmount(raw string) decimal.Decimal {
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		logger.Warnw("provider_gateway_min_amount_invalid", "value", raw)
		return decimal.NewFromInt(100)
	}
	return amount
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
