package service

import (
	"testing"
	"time"
)

func TestNextMonthlyCharge(t *testing.T) {
	tests := []struct {
		name   string
		anchor time.Time
		after  time.Time
		want   time.Time
	}{
		{
			name:   "same_day_next_month",
			anchor: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
			after:  time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
			want:   time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:   "skips_elapsed_months",
			anchor: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
			after:  time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2026, 5, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:   "month_end_anchor_uses_last_day",
			anchor: time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC),
			after:  time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextMonthlyCharge(tt.anchor, tt.after)
			if err != nil {
				t.Fatalf("next charge failed: %v", err)
			}
			if got == nil || !got.Equal(tt.want) {
				t.Fatalf("NextMonthlyCharge() = %v, want %v", got, tt.want)
			}
		})
	}
}
