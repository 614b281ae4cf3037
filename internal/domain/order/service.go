package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/coursemart/internal/domain/coupon"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = fmt.Errorf("order not found")

// Committer redeems the coupons of an order.
type Committer interface {
	// Commit returns *coupon.ConflictError when quota ran out.
	Commit(ctx context.Context, codes []string, orderID string) error
}

// PlaceResult holds the output of a successfully placed order.
type PlaceResult struct {
	Order    *Order
	Discount *coupon.Result
}

// Service encapsulates order placement and finalization.
type Service struct {
	coupons   coupon.Validator
	committer Committer
	orders    Repository
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	coupons coupon.Validator,
	committer Committer,
	orders Repository,
) *Service {
	return &Service{
		coupons:   coupons,
		committer: committer,
		orders:    orders,
		now:       time.Now,
	}
}

// Place evaluates the candidate codes of oc and stores a pending order
// carrying only the accepted codes. Orders without codes skip evaluation.
func (s *Service) Place(ctx context.Context, oc coupon.OrderContext) (*PlaceResult, error) {
	var res *coupon.Result
	if len(oc.Codes) > 0 {
		var err error
		res, err = s.coupons.Validate(ctx, oc)
		if err != nil {
			return nil, err
		}
	} else {
		if oc.CourseID == "" || oc.Subtotal.IsNegative() {
			return nil, fmt.Errorf("course id and non-negative subtotal required: %w", coupon.ErrInvalidOrderContext)
		}
		res = &coupon.Result{
			Subtotal:      oc.Subtotal,
			TotalDiscount: decimal.Zero,
			FinalAmount:   oc.Subtotal,
		}
	}

	o := &Order{
		ID:          uuid.New().String(),
		BuyerID:     oc.BuyerID,
		CourseID:    oc.CourseID,
		Subtotal:    res.Subtotal,
		Discount:    res.TotalDiscount,
		Total:       res.FinalAmount,
		CouponCodes: res.AcceptedCodes(),
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &PlaceResult{Order: o, Discount: res}, nil
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// Finalize redeems the coupons of a pending order and marks it finalized.
// A finalized order is returned unchanged. When redemption conflicts the
// order stays pending and the *coupon.ConflictError is returned so the
// buyer can re-validate.
func (s *Service) Finalize(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.Status == StatusFinalized {
		return o, nil
	}

	if err := s.committer.Commit(ctx, o.CouponCodes, o.ID); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if err := s.orders.MarkFinalized(ctx, o.ID, at); err != nil {
		return nil, fmt.Errorf("mark order finalized: %w", err)
	}
	o.Status = StatusFinalized
	o.FinalizedAt = &at

	return o, nil
}
