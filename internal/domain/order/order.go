package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending orders carry a computed discount whose coupons are not
	// yet redeemed.
	StatusPending Status = "PENDING"
	// StatusFinalized orders have redeemed every coupon they carry.
	StatusFinalized Status = "FINALIZED"
)

// Order is a course purchase with the discount computed at placement time.
type Order struct {
	ID          string
	BuyerID     string
	CourseID    string
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	CouponCodes []string
	Status      Status
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*Order, error)
	// MarkFinalized moves a pending order to StatusFinalized. It is a no-op
	// for an order that is already finalized.
	MarkFinalized(ctx context.Context, id string, at time.Time) error
}
