package service

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误类别
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindProvider       ErrorKind = "provider"
	KindInternal       ErrorKind = "internal"
)

// Error 带类别的业务错误，Key 用于比较与接口输出
type Error struct {
	Kind ErrorKind
	Key  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同 Key 的错误视为同一错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Key == "" {
		return false
	}
	return t.Key == e.Key
}

// Wrap 复制错误并附加底层原因
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Key: e.Key, Msg: e.Msg, Err: cause}
}

// Wrapf 复制错误并附加格式化原因
func (e *Error) Wrapf(format string, args ...interface{}) *Error {
	return e.Wrap(fmt.Errorf(format, args...))
}

// KindOf 返回错误类别，非业务错误视为内部错误
func KindOf(err error) ErrorKind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindInternal
}

func newError(kind ErrorKind, key, msg string) *Error {
	return &Error{Kind: kind, Key: key, Msg: msg}
}

var (
	ErrInvalidAmount        = newError(KindValidation, "error.amount_invalid", "amount must be a positive number")
	ErrAmountBelowMinimum   = newError(KindValidation, "error.amount_below_minimum", "amount is below the provider minimum")
	ErrAmountTooPrecise     = newError(KindValidation, "error.amount_precision_invalid", "amount has too many decimal places")
	ErrAmountTooLarge       = newError(KindValidation, "error.amount_too_large", "amount exceeds the maximum pledge")
	ErrInvalidEmail         = newError(KindValidation, "error.email_invalid", "email address is invalid")
	ErrAnimalIDRequired     = newError(KindValidation, "error.animal_id_required", "animal id is required")
	ErrAnimalInactive       = newError(KindValidation, "error.animal_inactive", "animal is not accepting sponsorships")
	ErrAnimalInvalid        = newError(KindValidation, "error.animal_invalid", "animal data is invalid")
	ErrAnimalStatusInvalid  = newError(KindValidation, "error.animal_status_invalid", "animal status is invalid")
	ErrUserRoleInvalid      = newError(KindValidation, "error.user_role_invalid", "user role is invalid")
	ErrSubscriptionMethod   = newError(KindValidation, "error.subscription_method_invalid", "subscription method is invalid")
	ErrCallbackInvalid      = newError(KindValidation, "error.payment_callback_invalid", "payment callback payload is invalid")
	ErrCurrencyUnsupported  = newError(KindValidation, "error.currency_unsupported", "currency is not supported")
	ErrSignatureInvalid     = newError(KindAuthentication, "error.payment_signature_invalid", "payment signature verification failed")
	ErrInvalidCredentials   = newError(KindAuthentication, "error.invalid_credentials", "email or password is incorrect")
	ErrTokenInvalid         = newError(KindAuthentication, "error.token_invalid", "token is invalid or expired")
	ErrUserDisabled         = newError(KindAuthentication, "error.user_disabled", "account is disabled")
	ErrSubscriptionNotOwned = newError(KindAuthorization, "error.subscription_not_owned", "subscription not found")
	ErrAnimalNotFound       = newError(KindNotFound, "error.animal_not_found", "animal not found")
	ErrSubscriptionNotFound = newError(KindNotFound, "error.subscription_not_found", "subscription not found")
	ErrPaymentNotFound      = newError(KindNotFound, "error.payment_not_found", "payment not found")
	ErrSubscriptionCanceled = newError(KindConflict, "error.subscription_already_canceled", "subscription is already canceled")
	ErrProviderUnavailable  = newError(KindProvider, "error.payment_provider_unavailable", "payment provider is not configured")
	ErrProviderRequest      = newError(KindProvider, "error.payment_provider_failed", "payment provider request failed")
	ErrPersistFailed        = newError(KindInternal, "error.persist_failed", "failed to persist record")
	ErrEmailDisabled        = newError(KindInternal, "error.email_disabled", "email service is disabled")
	ErrEmailNotConfigured   = newError(KindInternal, "error.email_not_configured", "email service is not configured")
	ErrArchiveUnavailable   = newError(KindInternal, "error.archive_unavailable", "payload archive is not configured")
)
