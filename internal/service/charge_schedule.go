package service

import (
	"time"

	"github.com/teambition/rrule-go"
)

// NextMonthlyCharge 按月度规则计算 after 之后的下一次扣款时间
// 锚点日期大于 28 时按当月最后一天扣款
func NextMonthlyCharge(anchor, after time.Time) (*time.Time, error) {
	anchor = anchor.UTC()
	option := rrule.ROption{
		Freq:    rrule.MONTHLY,
		Dtstart: anchor,
	}
	if anchor.Day() > 28 {
		option.Bymonthday = []int{-1}
	}
	rule, err := rrule.NewRRule(option)
	if err != nil {
		return nil, err
	}
	next := rule.After(after.UTC(), false)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}
