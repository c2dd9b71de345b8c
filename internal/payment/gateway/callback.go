package gateway

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pawpledge/internal/constants"
	"github.com/pawpledge/internal/payment/signature"
)

const (
	ParamMerchantOrderNumber = "MERORDERNUM"
	ParamPRCode              = "PRCODE"
	ParamSRCode              = "SRCODE"
	ParamResultText          = "RESULTTEXT"
	ParamDigestExtended      = "DIGEST1"

	prCodeCardholderCanceled = "50"
)

// CallbackSignedFields 回调中参与验签的字段，其余字段忽略
var CallbackSignedFields = []string{
	ParamOperation,
	ParamOrderNumber,
	ParamMerchantOrderNumber,
	ParamMerchantData,
	ParamPRCode,
	ParamSRCode,
	ParamResultText,
	ParamAmount,
	ParamCurrency,
}

// CallbackResult 网关回调解析结果
type CallbackResult struct {
	OrderNumber         string
	MerchantOrderNumber string
	MerchantData        string
	PRCode              string
	SRCode              string
	ResultText          string
	AmountMinor         int64
	Currency            string
	Status              string
	SignedFields        map[string]string
	Digest              string
}

// ParseCallback 解析回调参数（不验签）
func ParseCallback(values url.Values) (*CallbackResult, error) {
	fields := make(map[string]string, len(CallbackSignedFields))
	for _, key := range CallbackSignedFields {
		fields[key] = strings.TrimSpace(values.Get(key))
	}
	result := &CallbackResult{
		OrderNumber:         fields[ParamOrderNumber],
		MerchantOrderNumber: fields[ParamMerchantOrderNumber],
		MerchantData:        fields[ParamMerchantData],
		PRCode:              fields[ParamPRCode],
		SRCode:              fields[ParamSRCode],
		ResultText:          fields[ParamResultText],
		SignedFields:        fields,
		Digest:              strings.TrimSpace(values.Get(ParamDigest)),
	}
	if result.OrderNumber == "" || result.PRCode == "" {
		return nil, ErrCallbackInvalid
	}
	if raw := fields[ParamAmount]; raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || amount < 0 {
			return nil, ErrCallbackInvalid
		}
		result.AmountMinor = amount
	}
	if raw := fields[ParamCurrency]; raw != "" {
		result.Currency = CurrencyFromNumericCode(raw)
	}
	result.Status = mapResultStatus(result.PRCode, result.SRCode)
	return result, nil
}

// VerifyCallback 解析并验签网关回调
func VerifyCallback(values url.Values, verifier *signature.Signer) (*CallbackResult, error) {
	result, err := ParseCallback(values)
	if err != nil {
		return nil, err
	}
	if result.Digest == "" {
		return nil, ErrSignatureInvalid
	}
	if !verifier.VerifyParams(result.SignedFields, result.Digest) {
		return nil, ErrSignatureInvalid
	}
	return result, nil
}

func mapResultStatus(prCode, srCode string) string {
	if prCode == "0" && (srCode == "0" || srCode == "") {
		return constants.PaymentStatusPaid
	}
	if prCode == prCodeCardholderCanceled {
		return constants.PaymentStatusCanceled
	}
	return constants.PaymentStatusFailed
}
