package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMinorUnitsInexact 金额无法精确换算为最小货币单位
var ErrMinorUnitsInexact = errors.New("amount has more precision than the currency allows")

// ErrMinorUnitsOutOfRange 金额非正或超出 int64 最小单位范围
var ErrMinorUnitsOutOfRange = errors.New("amount is out of the representable range")

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// 零小数位币种
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// Money 统一金额类型（主货币单位，保留 2 位小数）
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal 从 decimal 创建金额
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(2)}
}

// NewMoneyFromMinor 从最小货币单位创建金额
func NewMoneyFromMinor(minor int64, currency string) Money {
	return NewMoneyFromDecimal(decimal.NewFromInt(minor).Shift(-currencyExponent(currency)))
}

// MinorUnits 换算为最小货币单位
func (m Money) MinorUnits(currency string) (int64, error) {
	shifted := m.Decimal.Shift(currencyExponent(currency))
	if !shifted.IsPositive() || shifted.GreaterThan(maxMinorUnits) {
		return 0, ErrMinorUnitsOutOfRange
	}
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrMinorUnitsInexact
	}
	return shifted.IntPart(), nil
}

func currencyExponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// MarshalJSON 统一输出 2 位小数的字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.Round(2).StringFixed(2))
}

// UnmarshalJSON 解析金额（字符串或数字），保留原始精度交由 MinorUnits 校验
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	m.Decimal = d
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(2).Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(2)
	return nil
}

// String 返回 2 位小数格式
func (m Money) String() string {
	return m.Decimal.Round(2).StringFixed(2)
}
