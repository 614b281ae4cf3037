package api

import (
	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/domain/order"
)

// NewValidateRequest converts an order context to its wire form.
func NewValidateRequest(oc coupon.OrderContext) ValidateRequest {
	return ValidateRequest{
		Codes:    oc.Codes,
		CourseID: oc.CourseID,
		Subtotal: oc.Subtotal,
		BuyerID:  oc.BuyerID,
	}
}

// OrderContext returns the domain order context of r.
func (r *ValidateRequest) OrderContext() coupon.OrderContext {
	return coupon.OrderContext{
		CourseID: r.CourseID,
		Subtotal: r.Subtotal,
		BuyerID:  r.BuyerID,
		Codes:    r.Codes,
	}
}

// NewDiscountResult converts an engine result to its wire form.
func NewDiscountResult(res *coupon.Result) DiscountResult {
	out := DiscountResult{
		Subtotal:      res.Subtotal,
		Accepted:      make([]AppliedCoupon, len(res.Accepted)),
		Rejected:      make([]RejectedCoupon, len(res.Rejected)),
		TotalDiscount: res.TotalDiscount,
		FinalAmount:   res.FinalAmount,
	}
	for i, a := range res.Accepted {
		out.Accepted[i] = AppliedCoupon{Code: a.Code, Amount: a.Amount}
	}
	for i, rj := range res.Rejected {
		out.Rejected[i] = RejectedCoupon{Code: rj.Code, Reason: string(rj.Reason)}
	}
	return out
}

// Result returns the engine result r describes.
func (r *DiscountResult) Result() *coupon.Result {
	res := &coupon.Result{
		Subtotal:      r.Subtotal,
		Accepted:      make([]coupon.Applied, len(r.Accepted)),
		Rejected:      make([]coupon.Rejection, len(r.Rejected)),
		TotalDiscount: r.TotalDiscount,
		FinalAmount:   r.FinalAmount,
	}
	for i, a := range r.Accepted {
		res.Accepted[i] = coupon.Applied{Code: a.Code, Amount: a.Amount}
	}
	for i, rj := range r.Rejected {
		res.Rejected[i] = coupon.Rejection{Code: rj.Code, Reason: coupon.Reason(rj.Reason)}
	}
	return res
}

// NewOrder converts an order to its wire form.
func NewOrder(o *order.Order) Order {
	return Order{
		ID:          o.ID,
		BuyerID:     o.BuyerID,
		CourseID:    o.CourseID,
		Subtotal:    o.Subtotal,
		Discount:    o.Discount,
		Total:       o.Total,
		CouponCodes: o.CouponCodes,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		FinalizedAt: o.FinalizedAt,
	}
}

// Terms returns the domain terms of t. A restricted coupon must name at
// least one course.
func (t *CouponTerms) Terms() (coupon.Terms, error) {
	scope := coupon.AllCourses()
	if !t.AppliesToAllCourses {
		var err error
		if scope, err = coupon.RestrictedTo(t.AllowedCourseIDs...); err != nil {
			return coupon.Terms{}, &coupon.ValidationError{Field: "allowedCourseIds", Reason: err.Error()}
		}
	}
	return coupon.Terms{
		DiscountType:  coupon.DiscountType(t.DiscountType),
		DiscountValue: t.DiscountValue,
		MinAmount:     t.MinAmount,
		MaxDiscount:   t.MaxDiscount,
		UsageLimit:    t.UsageLimit,
		ValidFrom:     t.ValidFrom,
		ValidUntil:    t.ValidUntil,
		Courses:       scope,
		Stackable:     t.CanStack,
		Description:   t.Description,
	}, nil
}

// NewCoupon converts a stored coupon to its administrative wire form.
func NewCoupon(rec *coupon.Record) Coupon {
	return Coupon{
		Code:      rec.Code,
		IsActive:  rec.Active,
		UsedCount: rec.UsedCount,
		CouponTerms: CouponTerms{
			DiscountType:        string(rec.DiscountType),
			DiscountValue:       rec.DiscountValue,
			MinAmount:           rec.MinAmount,
			MaxDiscount:         rec.MaxDiscount,
			UsageLimit:          rec.UsageLimit,
			ValidFrom:           rec.ValidFrom,
			ValidUntil:          rec.ValidUntil,
			AppliesToAllCourses: !rec.Courses.Restricted(),
			AllowedCourseIDs:    rec.Courses.CourseIDs(),
			CanStack:            rec.Stackable,
			Description:         rec.Description,
		},
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
