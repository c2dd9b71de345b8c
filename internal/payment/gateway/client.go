package gateway

import (
	"net/url"
	"strings"
	"time"

	"github.com/pawpledge/internal/payment/signature"
)

// Config 网关配置
type Config struct {
	GatewayURL            string
	MerchantNumber        string
	MerchantPrivateKey    string
	MerchantKeyPassphrase string
	GatewayPublicKey      string
	SignAlgorithm         string
	Currency              string
	DepositFlag           bool
	ReturnURL             string
}

// Client 网关客户端，持有商户签名器与网关验签器
type Client struct {
	cfg      Config
	merchant *signature.Signer
	gateway  *signature.Signer
}

// NewClient 创建网关客户端
func NewClient(cfg Config) (*Client, error) {
	cfg.GatewayURL = strings.TrimSpace(cfg.GatewayURL)
	cfg.MerchantNumber = strings.TrimSpace(cfg.MerchantNumber)
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if cfg.GatewayURL == "" || cfg.MerchantNumber == "" || cfg.ReturnURL == "" {
		return nil, ErrConfigInvalid
	}
	if cfg.Currency == "" {
		cfg.Currency = "CZK"
	}
	merchant, err := signature.NewSigner(signature.KeyConfig{
		PrivateKey: cfg.MerchantPrivateKey,
		Passphrase: cfg.MerchantKeyPassphrase,
		Algorithm:  cfg.SignAlgorithm,
	})
	if err != nil || !merchant.CanSign() {
		return nil, ErrConfigInvalid
	}
	verifier, err := signature.NewSigner(signature.KeyConfig{
		PublicKey: cfg.GatewayPublicKey,
		Algorithm: cfg.SignAlgorithm,
	})
	if err != nil {
		return nil, ErrConfigInvalid
	}
	return &Client{cfg: cfg, merchant: merchant, gateway: verifier}, nil
}

// NewClientWithSigners 使用已构造的签名器创建客户端
func NewClientWithSigners(cfg Config, merchant, verifier *signature.Signer) *Client {
	if cfg.Currency == "" {
		cfg.Currency = "CZK"
	}
	return &Client{cfg: cfg, merchant: merchant, gateway: verifier}
}

// Currency 网关结算币种
func (c *Client) Currency() string {
	return c.cfg.Currency
}

// NewOrderNumber 生成订单号
func (c *Client) NewOrderNumber() (string, error) {
	return NewOrderNumber(time.Now())
}

// Intent 按配置补齐商户号、入账标记与回跳地址
func (c *Client) Intent(orderNumber string, amountMinor int64, description, merchantData string) RedirectIntent {
	return RedirectIntent{
		MerchantID:       c.cfg.MerchantNumber,
		OrderNumber:      orderNumber,
		AmountMinorUnits: amountMinor,
		Currency:         c.cfg.Currency,
		DepositFlag:      c.cfg.DepositFlag,
		ReturnURL:        c.cfg.ReturnURL,
		Description:      description,
		MerchantData:     merchantData,
	}
}

// BuildRedirectURL 生成跳转地址
func (c *Client) BuildRedirectURL(intent RedirectIntent) (string, error) {
	return BuildRedirectURL(c.cfg.GatewayURL, intent, c.merchant)
}

// VerifyCallback 验证网关回调
func (c *Client) VerifyCallback(values url.Values) (*CallbackResult, error) {
	return VerifyCallback(values, c.gateway)
}
