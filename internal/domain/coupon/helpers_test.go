package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func limit(n int64) *int64 {
	return &n
}

func percent(code, value string) *Record {
	return &Record{
		Code:   code,
		Active: true,
		Terms: Terms{
			DiscountType:  DiscountPercentage,
			DiscountValue: d(value),
			ValidFrom:     fixedNow.Add(-time.Hour),
			Stackable:     true,
		},
	}
}

func fixed(code, value string) *Record {
	return &Record{
		Code:   code,
		Active: true,
		Terms: Terms{
			DiscountType:  DiscountFixed,
			DiscountValue: d(value),
			ValidFrom:     fixedNow.Add(-time.Hour),
			Stackable:     true,
		},
	}
}

func assertAmount(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	if !want.Equal(got) {
		t.Errorf("expected amount %s, got %s", want, got)
	}
}
