package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exclusive(r *Record) *Record {
	r.Stackable = false
	return r
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		records      []*Record
		subtotal     decimal.Decimal
		wantAccepted []Applied
		wantRejected []Rejection
		wantTotal    decimal.Decimal
	}{
		{
			name:         "no coupons",
			subtotal:     d("100.00"),
			wantTotal:    decimal.Zero,
			wantAccepted: nil,
		},
		{
			name:     "stackable percentages compound on running balance",
			records:  []*Record{percent("TEN_A", "10"), percent("TEN_B", "10")},
			subtotal: d("100.00"),
			wantAccepted: []Applied{
				{Code: "TEN_A", Amount: d("10.00")},
				{Code: "TEN_B", Amount: d("9.00")},
			},
			wantTotal: d("19.00"),
		},
		{
			name:     "non-stackable first rejects the rest",
			records:  []*Record{exclusive(fixed("SOLO", "5")), percent("TEN", "10")},
			subtotal: d("40.00"),
			wantAccepted: []Applied{
				{Code: "SOLO", Amount: d("5.00")},
			},
			wantRejected: []Rejection{
				{Code: "TEN", Reason: ReasonStackingConflict},
			},
			wantTotal: d("5.00"),
		},
		{
			name:     "non-stackable later in the list still wins",
			records:  []*Record{percent("TEN", "10"), exclusive(fixed("SOLO", "5")), exclusive(fixed("SOLO2", "7"))},
			subtotal: d("40.00"),
			wantAccepted: []Applied{
				{Code: "SOLO", Amount: d("5.00")},
			},
			wantRejected: []Rejection{
				{Code: "TEN", Reason: ReasonStackingConflict},
				{Code: "SOLO2", Reason: ReasonStackingConflict},
			},
			wantTotal: d("5.00"),
		},
		{
			name:     "lone non-stackable is applied",
			records:  []*Record{exclusive(percent("SOLO", "25"))},
			subtotal: d("80.00"),
			wantAccepted: []Applied{
				{Code: "SOLO", Amount: d("20.00")},
			},
			wantTotal: d("20.00"),
		},
		{
			name:     "fixed amounts never exceed subtotal",
			records:  []*Record{fixed("A", "30"), fixed("B", "30"), fixed("C", "30")},
			subtotal: d("50.00"),
			wantAccepted: []Applied{
				{Code: "A", Amount: d("30.00")},
				{Code: "B", Amount: d("20.00")},
				{Code: "C", Amount: d("0")},
			},
			wantTotal: d("50.00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.records, tt.subtotal)
			require.NoError(t, err)

			require.Len(t, res.Accepted, len(tt.wantAccepted))
			for i, want := range tt.wantAccepted {
				assert.Equal(t, want.Code, res.Accepted[i].Code)
				assertAmount(t, want.Amount, res.Accepted[i].Amount)
			}
			assert.Equal(t, tt.wantRejected, res.Rejected)
			assertAmount(t, tt.wantTotal, res.TotalDiscount)
			assert.True(t, res.TotalDiscount.LessThanOrEqual(tt.subtotal))
		})
	}
}

func TestResolve_TotalNeverExceedsSubtotal(t *testing.T) {
	subtotals := []string{"0", "0.01", "9.99", "100.00", "2500.00"}
	for _, s := range subtotals {
		subtotal := d(s)
		records := []*Record{
			percent("P1", "60"),
			fixed("F1", "45.50"),
			percent("P2", "100"),
			fixed("F2", "1000"),
		}
		res, err := Resolve(records, subtotal)
		require.NoError(t, err)
		assert.True(t, res.TotalDiscount.LessThanOrEqual(subtotal), "total %s over subtotal %s", res.TotalDiscount, s)
	}
}
