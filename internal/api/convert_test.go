package api

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coursemart/internal/domain/coupon"
)

func TestCouponTerms_Terms(t *testing.T) {
	t.Run("AllCourses", func(t *testing.T) {
		in := CouponTerms{
			DiscountType:        "PERCENTAGE",
			DiscountValue:       decimal.NewFromInt(20),
			AppliesToAllCourses: true,
			AllowedCourseIDs:    []string{"ignored"},
			CanStack:            true,
		}
		terms, err := in.Terms()
		require.NoError(t, err)
		assert.Equal(t, coupon.DiscountPercentage, terms.DiscountType)
		assert.False(t, terms.Courses.Restricted())
		assert.True(t, terms.Stackable)
	})
	t.Run("Restricted", func(t *testing.T) {
		in := CouponTerms{
			DiscountType:     "FIXED_AMOUNT",
			DiscountValue:    decimal.NewFromInt(5),
			AllowedCourseIDs: []string{"go-201", "go-101"},
		}
		terms, err := in.Terms()
		require.NoError(t, err)
		assert.True(t, terms.Courses.Allows("go-101"))
		assert.False(t, terms.Courses.Allows("rust-101"))
	})
	t.Run("EmptyRestriction", func(t *testing.T) {
		in := CouponTerms{DiscountType: "FIXED_AMOUNT", AllowedCourseIDs: []string{" "}}
		_, err := in.Terms()

		var verr *coupon.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "allowedCourseIds", verr.Field)
	})
}

func TestDiscountResult_Result(t *testing.T) {
	res := &coupon.Result{
		Subtotal:      decimal.NewFromInt(100),
		Accepted:      []coupon.Applied{{Code: "SAVE20", Amount: decimal.NewFromInt(20)}},
		Rejected:      []coupon.Rejection{{Code: "OLD", Reason: coupon.ReasonExpired}},
		TotalDiscount: decimal.NewFromInt(20),
		FinalAmount:   decimal.NewFromInt(80),
	}

	wire := NewDiscountResult(res)
	assert.Equal(t, "EXPIRED", wire.Rejected[0].Reason)
	assert.Equal(t, res, wire.Result())
}

func TestNewCoupon(t *testing.T) {
	scope, err := coupon.RestrictedTo("go-101")
	require.NoError(t, err)

	out := NewCoupon(&coupon.Record{
		Code:      "GOONLY",
		UsedCount: 3,
		Active:    true,
		Terms: coupon.Terms{
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(5),
			Courses:       scope,
		},
	})
	assert.Equal(t, "GOONLY", out.Code)
	assert.Equal(t, int64(3), out.UsedCount)
	assert.False(t, out.AppliesToAllCourses)
	assert.Equal(t, []string{"go-101"}, out.AllowedCourseIDs)
	assert.False(t, out.CanStack)
}
