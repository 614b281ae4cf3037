package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Resolution is the outcome of combining eligible coupons.
type Resolution struct {
	Accepted      []Applied
	Rejected      []Rejection
	TotalDiscount decimal.Decimal
}

// Resolve combines eligible records, given in submission order, against
// subtotal.
//
// When more than one record is present and any of them is non-stackable,
// only the first non-stackable record is applied and every other record is
// rejected with ReasonStackingConflict. Otherwise records are applied in
// order against a decreasing running balance, so two 10% coupons on 100.00
// take 10.00 and then 9.00.
func Resolve(records []*Record, subtotal decimal.Decimal) (Resolution, error) {
	res := Resolution{TotalDiscount: decimal.Zero}

	if len(records) > 1 {
		if i := firstExclusive(records); i >= 0 {
			for j, rec := range records {
				if j != i {
					res.Rejected = append(res.Rejected, Rejection{Code: rec.Code, Reason: ReasonStackingConflict})
				}
			}
			records = records[i : i+1]
		}
	}

	running := subtotal
	for _, rec := range records {
		amount, err := ComputeDiscount(rec, running)
		if err != nil {
			return Resolution{}, errors.Wrapf(err, "compute discount for %q", rec.Code)
		}
		running = running.Sub(amount)
		res.TotalDiscount = res.TotalDiscount.Add(amount)
		res.Accepted = append(res.Accepted, Applied{Code: rec.Code, Amount: amount})
	}

	return res, nil
}

func firstExclusive(records []*Record) int {
	for i, rec := range records {
		if !rec.Stackable {
			return i
		}
	}
	return -1
}
