package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiscount(t *testing.T) {
	capped := percent("CAP", "20")
	capped.MaxDiscount = decimal.NewNullDecimal(d("15"))

	tests := []struct {
		name    string
		rec     *Record
		running decimal.Decimal
		want    decimal.Decimal
	}{
		{
			name:    "fixed amount larger than subtotal is clamped",
			rec:     fixed("TEN", "10"),
			running: d("8.00"),
			want:    d("8.00"),
		},
		{
			name:    "fixed amount below subtotal",
			rec:     fixed("TEN", "10"),
			running: d("50.00"),
			want:    d("10.00"),
		},
		{
			name:    "percentage capped by max discount",
			rec:     capped,
			running: d("100.00"),
			want:    d("15.00"),
		},
		{
			name:    "percentage under cap",
			rec:     capped,
			running: d("50.00"),
			want:    d("10.00"),
		},
		{
			name:    "half rounds to even down",
			rec:     percent("HALF", "50"),
			running: d("0.25"),
			want:    d("0.12"),
		},
		{
			name:    "half rounds to even up",
			rec:     percent("HALF", "50"),
			running: d("0.75"),
			want:    d("0.38"),
		},
		{
			name:    "thirds round to minor unit",
			rec:     percent("THIRD", "33.33"),
			running: d("19.99"),
			want:    d("6.66"),
		},
		{
			name:    "zero balance yields zero",
			rec:     fixed("TEN", "10"),
			running: decimal.Zero,
			want:    decimal.Zero,
		},
		{
			name:    "hundred percent takes everything",
			rec:     percent("FREE", "100"),
			running: d("49.99"),
			want:    d("49.99"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDiscount(tt.rec, tt.running)
			require.NoError(t, err)
			assertAmount(t, tt.want, got)
		})
	}
}

func TestComputeDiscount_UnsupportedType(t *testing.T) {
	rec := fixed("ODD", "5")
	rec.DiscountType = "BOGO"

	_, err := ComputeDiscount(rec, d("10"))
	require.Error(t, err)
}

func TestComputeDiscount_Bounds(t *testing.T) {
	values := []string{"0", "0.5", "1", "7.77", "12.5", "33.33", "50", "99.99", "100"}
	balances := []string{"0.01", "0.05", "1.00", "8.00", "19.99", "100.00", "1234.56"}
	maxCap := d("15")

	for _, v := range values {
		for _, b := range balances {
			running := d(b)

			pct := percent("P", v)
			pct.MaxDiscount = decimal.NewNullDecimal(maxCap)
			got, err := ComputeDiscount(pct, running)
			require.NoError(t, err)
			assert.True(t, got.LessThanOrEqual(running), "percent %s on %s gave %s", v, b, got)
			assert.True(t, got.LessThanOrEqual(maxCap), "percent %s on %s exceeded cap: %s", v, b, got)
			assert.False(t, got.IsNegative())

			got, err = ComputeDiscount(fixed("F", v), running)
			require.NoError(t, err)
			assert.True(t, got.LessThanOrEqual(running), "fixed %s on %s gave %s", v, b, got)
		}
	}
}
