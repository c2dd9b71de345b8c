package service

import (
	"errors"

	"github.com/pawpledge/internal/models"

	"github.com/shopspring/decimal"
)

// MaxPledgeAmount 单笔资助金额上限（主货币单位）
var MaxPledgeAmount = decimal.NewFromInt(1_000_000)

// pledgeMinorUnits 校验资助金额并换算为最小货币单位
func pledgeMinorUnits(amount models.Money, currency string) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if amount.GreaterThan(MaxPledgeAmount) {
		return 0, ErrAmountTooLarge.Wrapf("maximum is %s", MaxPledgeAmount.StringFixed(2))
	}
	minor, err := amount.MinorUnits(currency)
	switch {
	case errors.Is(err, models.ErrMinorUnitsInexact):
		return 0, ErrAmountTooPrecise
	case err != nil:
		return 0, ErrAmountTooLarge.Wrap(err)
	}
	return minor, nil
}
