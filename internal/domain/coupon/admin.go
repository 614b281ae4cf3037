package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validate checks t against the coupon invariants.
func (t Terms) Validate() error {
	if !t.DiscountType.Valid() {
		return &ValidationError{Field: "discountType", Reason: "must be PERCENTAGE or FIXED_AMOUNT"}
	}
	if t.DiscountValue.IsNegative() {
		return &ValidationError{Field: "discountValue", Reason: "must not be negative"}
	}
	if !FitsMinorUnits(t.DiscountValue) {
		return &ValidationError{Field: "discountValue", Reason: "must have at most 2 decimal places"}
	}
	if t.DiscountType == DiscountPercentage && t.DiscountValue.GreaterThan(hundred) {
		return &ValidationError{Field: "discountValue", Reason: "percentage must not exceed 100"}
	}
	if t.MinAmount.IsNegative() {
		return &ValidationError{Field: "minAmount", Reason: "must not be negative"}
	}
	if !FitsMinorUnits(t.MinAmount) {
		return &ValidationError{Field: "minAmount", Reason: "must have at most 2 decimal places"}
	}
	if t.MaxDiscount.Valid && t.MaxDiscount.Decimal.IsNegative() {
		return &ValidationError{Field: "maxDiscount", Reason: "must not be negative"}
	}
	if t.MaxDiscount.Valid && !FitsMinorUnits(t.MaxDiscount.Decimal) {
		return &ValidationError{Field: "maxDiscount", Reason: "must have at most 2 decimal places"}
	}
	if t.UsageLimit != nil && *t.UsageLimit < 0 {
		return &ValidationError{Field: "usageLimit", Reason: "must not be negative"}
	}
	if t.ValidUntil != nil && t.ValidUntil.Before(t.ValidFrom) {
		return &ValidationError{Field: "validUntil", Reason: "must not precede validFrom"}
	}
	return nil
}

// Admin performs administrative coupon writes, enforcing invariants before
// anything reaches the store.
type Admin struct {
	store Store
	now   func() time.Time
}

// NewAdmin creates an Admin over store.
func NewAdmin(store Store) *Admin {
	return &Admin{store: store, now: time.Now}
}

// Create stores a new coupon with zero redemptions. A zero ValidFrom
// defaults to now.
func (a *Admin) Create(ctx context.Context, code string, terms Terms, active bool) (*Record, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	now := a.now().UTC()
	if terms.ValidFrom.IsZero() {
		terms.ValidFrom = now
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	rec := &Record{
		Code:      code,
		Terms:     terms,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrCodeExists) {
			return nil, ErrCodeExists
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	return rec, nil
}

// Get returns the coupon with the given code.
func (a *Admin) Get(ctx context.Context, code string) (*Record, error) {
	rec, err := a.store.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get coupon")
	}
	return rec, nil
}

// List returns every coupon ordered by code.
func (a *Admin) List(ctx context.Context) ([]Record, error) {
	recs, err := a.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return recs, nil
}

// UpdateTerms replaces the editable parameters of a coupon. The usage limit
// may not drop below the coupon's used count.
func (a *Admin) UpdateTerms(ctx context.Context, code string, terms Terms) (*Record, error) {
	if terms.ValidFrom.IsZero() {
		return nil, &ValidationError{Field: "validFrom", Reason: "is required"}
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	rec, err := a.store.UpdateTerms(ctx, NormalizeCode(code), terms, a.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrUsageLimitBelowUsed):
			return nil, ErrUsageLimitBelowUsed
		}
		return nil, errors.Wrap(err, "update coupon terms")
	}
	return rec, nil
}

// SetActive toggles the administrative kill switch.
func (a *Admin) SetActive(ctx context.Context, code string, active bool) (*Record, error) {
	rec, err := a.store.SetActive(ctx, NormalizeCode(code), active, a.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "set coupon active")
	}
	return rec, nil
}
