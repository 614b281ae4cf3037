// Package api defines the JSON wire format of the coupon engine HTTP API
// and its jx codecs. It is shared by the server handlers and the checkout
// client.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValidateRequest is the body of POST /coupons/validate.
type ValidateRequest struct {
	Codes    []string
	CourseID string
	Subtotal decimal.Decimal
	BuyerID  string
}

// PlaceOrderRequest is the body of POST /orders.
type PlaceOrderRequest = ValidateRequest

// AppliedCoupon is an accepted code in a DiscountResult.
type AppliedCoupon struct {
	Code   string
	Amount decimal.Decimal
}

// RejectedCoupon is a rejected code in a DiscountResult.
type RejectedCoupon struct {
	Code   string
	Reason string
}

// DiscountResult is the evaluation of a set of candidate codes.
type DiscountResult struct {
	Subtotal      decimal.Decimal
	Accepted      []AppliedCoupon
	Rejected      []RejectedCoupon
	TotalDiscount decimal.Decimal
	FinalAmount   decimal.Decimal
}

// Order is the wire form of an order.
type Order struct {
	ID          string
	BuyerID     string
	CourseID    string
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	CouponCodes []string
	Status      string
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// PlacedOrder is the response of POST /orders.
type PlacedOrder struct {
	Order    Order
	Discount DiscountResult
}

// CouponTerms is the editable part of a coupon, used by create and update.
type CouponTerms struct {
	DiscountType        string
	DiscountValue       decimal.Decimal
	MinAmount           decimal.Decimal
	MaxDiscount         decimal.NullDecimal
	UsageLimit          *int64
	ValidFrom           time.Time
	ValidUntil          *time.Time
	AppliesToAllCourses bool
	AllowedCourseIDs    []string
	CanStack            bool
	Description         string
}

// CreateCouponRequest is the body of POST /admin/coupons.
type CreateCouponRequest struct {
	Code     string
	IsActive bool
	CouponTerms
}

// SetActiveRequest is the body of PATCH /admin/coupons/{code}/active.
type SetActiveRequest struct {
	IsActive bool
}

// Coupon is the administrative view of a coupon.
type Coupon struct {
	Code      string
	IsActive  bool
	UsedCount int64
	CouponTerms
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Error is the body of every non-2xx response. Codes is set for unknown
// codes and redemption conflicts.
type Error struct {
	Code    int
	Message string
	Codes   []string
}

func (e *Error) Error() string {
	return e.Message
}
