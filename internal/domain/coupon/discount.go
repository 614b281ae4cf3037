package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MinorUnits is the number of decimal places money is rounded to.
const MinorUnits = 2

var hundred = decimal.NewFromInt(100)

// FitsMinorUnits reports whether v has no digits beyond MinorUnits decimal
// places.
func FitsMinorUnits(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(MinorUnits))
}

// ComputeDiscount returns the amount rec takes off running. The result is
// rounded half-to-even to MinorUnits and never exceeds running.
func ComputeDiscount(rec *Record, running decimal.Decimal) (decimal.Decimal, error) {
	if !running.IsPositive() {
		return decimal.Zero, nil
	}

	var amount decimal.Decimal
	switch rec.DiscountType {
	case DiscountFixed:
		amount = decimal.Min(rec.DiscountValue, running)
	case DiscountPercentage:
		amount = running.Mul(rec.DiscountValue).Div(hundred)
		if rec.MaxDiscount.Valid {
			amount = decimal.Min(amount, rec.MaxDiscount.Decimal)
		}
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", rec.DiscountType)
	}

	amount = decimal.Min(amount.RoundBank(MinorUnits), running)
	if amount.IsNegative() {
		return decimal.Zero, nil
	}
	return amount, nil
}
