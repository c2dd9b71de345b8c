package gateway

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pawpledge/internal/payment/signature"

	"github.com/go-playground/validator/v10"
)

const (
	ParamMerchantNumber = "MERCHANTNUMBER"
	ParamOperation      = "OPERATION"
	ParamOrderNumber    = "ORDERNUMBER"
	ParamAmount         = "AMOUNT"
	ParamCurrency       = "CURRENCY"
	ParamDepositFlag    = "DEPOSITFLAG"
	ParamURL            = "URL"
	ParamDescription    = "DESCRIPTION"
	ParamMerchantData   = "MD"
	ParamDigest         = "DIGEST"

	OperationCreateOrder = "CREATE_ORDER"

	orderNumberLength = 15
)

var (
	ErrConfigInvalid    = errors.New("gateway config invalid")
	ErrIntentInvalid    = errors.New("gateway intent invalid")
	ErrSignatureInvalid = errors.New("gateway signature invalid")
	ErrCallbackInvalid  = errors.New("gateway callback invalid")
)

// RequestSignedFields 发起支付时参与签名的字段
var RequestSignedFields = []string{
	ParamMerchantNumber,
	ParamOperation,
	ParamOrderNumber,
	ParamAmount,
	ParamCurrency,
	ParamDepositFlag,
	ParamURL,
	ParamDescription,
	ParamMerchantData,
}

var currencyNumericCodes = map[string]string{
	"CZK": "203",
	"EUR": "978",
	"USD": "840",
	"GBP": "826",
	"PLN": "985",
}

var validate = validator.New()

// RedirectIntent 网关跳转支付意图
type RedirectIntent struct {
	MerchantID       string `validate:"required,numeric,max=10"`
	OrderNumber      string `validate:"required,numeric,max=15"`
	AmountMinorUnits int64  `validate:"gt=0"`
	Currency         string `validate:"required,len=3"`
	DepositFlag      bool
	ReturnURL        string `validate:"required,url"`
	Description      string `validate:"max=255"`
	MerchantData     string `validate:"max=255"`
}

// BuildRedirectURL 生成带签名的网关跳转地址
func BuildRedirectURL(gatewayBase string, intent RedirectIntent, signer *signature.Signer) (string, error) {
	base, err := url.Parse(strings.TrimSpace(gatewayBase))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", ErrConfigInvalid
	}
	if !signer.CanSign() {
		return "", ErrConfigInvalid
	}
	params, err := intentParams(intent)
	if err != nil {
		return "", err
	}
	digest, err := signer.SignParams(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	query := base.Query()
	for _, key := range RequestSignedFields {
		if value := params[key]; value != "" {
			query.Set(key, value)
		}
	}
	query.Set(ParamDigest, digest)
	base.RawQuery = query.Encode()
	return base.String(), nil
}

// CurrencyNumericCode 返回 ISO-4217 数字代码
func CurrencyNumericCode(currency string) (string, bool) {
	code, ok := currencyNumericCodes[strings.ToUpper(strings.TrimSpace(currency))]
	return code, ok
}

// CurrencyFromNumericCode 根据数字代码反查币种
func CurrencyFromNumericCode(code string) string {
	code = strings.TrimSpace(code)
	for alpha, numeric := range currencyNumericCodes {
		if numeric == code {
			return alpha
		}
	}
	return ""
}

// NewOrderNumber 生成 15 位纯数字订单号：毫秒时间戳后 8 位 + 7 位随机数
func NewOrderNumber(now time.Time) (string, error) {
	millis := fmt.Sprintf("%08d", now.UnixMilli()%100000000)
	suffix, err := randomDigits(orderNumberLength - len(millis))
	if err != nil {
		return "", err
	}
	return millis + suffix, nil
}

func intentParams(intent RedirectIntent) (map[string]string, error) {
	if err := validate.Struct(intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentInvalid, err)
	}
	currency, ok := CurrencyNumericCode(intent.Currency)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported currency %s", ErrIntentInvalid, intent.Currency)
	}
	deposit := "0"
	if intent.DepositFlag {
		deposit = "1"
	}
	return map[string]string{
		ParamMerchantNumber: intent.MerchantID,
		ParamOperation:      OperationCreateOrder,
		ParamOrderNumber:    intent.OrderNumber,
		ParamAmount:         strconv.FormatInt(intent.AmountMinorUnits, 10),
		ParamCurrency:       currency,
		ParamDepositFlag:    deposit,
		ParamURL:            intent.ReturnURL,
		ParamDescription:    strings.TrimSpace(intent.Description),
		ParamMerchantData:   strings.TrimSpace(intent.MerchantData),
	}, nil
}

func randomDigits(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		builder.WriteByte(byte('0' + n.Int64()))
	}
	return builder.String(), nil
}
