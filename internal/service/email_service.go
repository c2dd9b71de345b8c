package service

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/models"

	"gopkg.in/gomail.v2"
)

// ErrEmailRecipientRejected 收件人被 SMTP 服务器拒收，重试无意义
var ErrEmailRecipientRejected = newError(KindValidation, "error.email_recipient_rejected", "email recipient rejected")

// MailSender 邮件投递
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService 邮件发送服务
type EmailService struct {
	cfg    *config.EmailConfig
	dialer func(cfg *config.EmailConfig) MailSender
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg, dialer: newSMTPDialer}
}

// NewEmailServiceWithSender 使用指定投递实现创建邮件服务
func NewEmailServiceWithSender(cfg *config.EmailConfig, sender MailSender) *EmailService {
	return &EmailService{cfg: cfg, dialer: func(*config.EmailConfig) MailSender { return sender }}
}

// PaymentConfirmationEmail 资助确认邮件内容
type PaymentConfirmationEmail struct {
	PayerName  string
	AnimalName string
	Amount     models.Money
	Currency   string
	OrderID    string
	Monthly    bool
}

// SendPaymentConfirmation 发送资助确认邮件
func (s *EmailService) SendPaymentConfirmation(toEmail string, input PaymentConfirmationEmail) error {
	subject, body := buildPaymentConfirmationContent(input)
	return s.sendTextEmail(toEmail, subject, body)
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}

	m := gomail.NewMessage()
	if name := strings.TrimSpace(s.cfg.FromName); name != "" {
		m.SetAddressHeader("From", s.cfg.From, name)
	} else {
		m.SetHeader("From", s.cfg.From)
	}
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	return normalizeEmailSendError(s.dialer(s.cfg).DialAndSend(m))
}

func newSMTPDialer(cfg *config.EmailConfig) MailSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.UseSSL {
		d.SSL = true
	}
	return d
}

func buildPaymentConfirmationContent(input PaymentConfirmationEmail) (string, string) {
	animal := strings.TrimSpace(input.AnimalName)
	if animal == "" {
		animal = "our animals"
	}
	greeting := "Hello"
	if name := strings.TrimSpace(input.PayerName); name != "" {
		greeting = "Hello " + name
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	subject := fmt.Sprintf("Thank you for supporting %s", animal)
	kind := "donation"
	if input.Monthly {
		subject = fmt.Sprintf("Your monthly sponsorship of %s", animal)
		kind = "monthly sponsorship payment"
	}
	body := fmt.Sprintf("%s,\n\nwe received your %s of %s %s for %s.\nReference: %s\n\nThank you for helping us care for them.",
		greeting, kind, input.Amount.String(), currency, animal, input.OrderID)
	return subject, body
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return ErrEmailRecipientRejected.Wrap(err)
	}
	return err
}

func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if message == "" {
		return false
	}
	for _, keyword := range []string{
		"no such recipient",
		"no such user",
		"recipient not found",
		"recipient address rejected",
		"invalid recipient",
		"user unknown",
		"unknown user",
		"unknown mailbox",
		"mailbox unavailable",
	} {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	if strings.Contains(message, "550") {
		for _, hint := range []string{"recipient", "user", "mailbox", "address", "rcpt"} {
			if strings.Contains(message, hint) {
				return true
			}
		}
	}
	return false
}
