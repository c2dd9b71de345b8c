package constants

// 支付意图状态常量
const (
	PaymentStatusCreated  = "CREATED"
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusCanceled = "CANCELED"
)

// PaymentTerminalStatuses 终态集合，进入后不再迁移
var PaymentTerminalStatuses = []string{
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusCanceled,
}

// IsPaymentTerminal 判断支付状态是否为终态
func IsPaymentTerminal(status string) bool {
	for _, terminal := range PaymentTerminalStatuses {
		if status == terminal {
			return true
		}
	}
	return false
}

// 订阅状态常量
const (
	SubscriptionStatusPending  = "PENDING"
	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusCanceled = "CANCELED"
)

// 订阅支付方式常量
const (
	SubscriptionMethodCard         = "card"
	SubscriptionMethodBankTransfer = "bank_transfer"
)

// IsInstantMethod 即时确认的支付方式
func IsInstantMethod(method string) bool {
	return method == SubscriptionMethodBankTransfer
}

// IsSubscriptionMethod 判断是否为支持的订阅支付方式
func IsSubscriptionMethod(method string) bool {
	return method == SubscriptionMethodCard || method == SubscriptionMethodBankTransfer
}

// 支付提供方常量
const (
	PaymentProviderStripe  = "stripe"
	PaymentProviderGateway = "gateway"
)

// 捐助账本归属类型
const (
	PledgeKindIntent       = "intent"
	PledgeKindSubscription = "subscription"
)

// 动物状态常量
const (
	AnimalStatusActive   = "active"
	AnimalStatusAdopted  = "adopted"
	AnimalStatusInactive = "inactive"
)

// IsAnimalStatus 判断是否为有效的动物状态
func IsAnimalStatus(status string) bool {
	switch status {
	case AnimalStatusActive, AnimalStatusAdopted, AnimalStatusInactive:
		return true
	}
	return false
}

// 用户角色与状态常量
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"

	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 权限对象与动作
const (
	AuthzObjectSubscriptions = "subscriptions"
	AuthzObjectPayments      = "payments"
	AuthzObjectAnimals       = "animals"
	AuthzObjectAuthz         = "authz"

	AuthzActionReadAny   = "read_any"
	AuthzActionCancelAny = "cancel_any"
	AuthzActionRead      = "read"
	AuthzActionWrite     = "write"
)

// 回跳结果页状态
const (
	ReturnStatusSuccess  = "success"
	ReturnStatusPending  = "pending"
	ReturnStatusFailed   = "failed"
	ReturnStatusCanceled = "canceled"
)

// 队列与任务
const (
	QueueDefault                = "default"
	QueueCritical               = "critical"
	TaskPaymentConfirmationMail = "payment:confirmation_email"
	TaskPaymentArchivePayload   = "payment:archive_payload"
)

// Webhook 事件处理结果
const (
	WebhookResultProcessed  = "processed"
	WebhookResultIdempotent = "idempotent"
	WebhookResultIgnored    = "ignored"
)

// 默认币种
const DefaultCurrency = "CZK"
