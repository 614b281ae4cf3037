package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Validator evaluates candidate codes against an order.
type Validator interface {
	Validate(ctx context.Context, oc OrderContext) (*Result, error)
}

var _ Validator = (*Engine)(nil)

// Engine looks candidate codes up, checks each one and resolves the eligible
// set into a Result. It never mutates coupon state.
type Engine struct {
	coupons Finder
	metrics *Metrics
	now     func() time.Time
}

// NewEngine creates an Engine reading coupons from f. metrics may be nil.
func NewEngine(f Finder, metrics *Metrics) *Engine {
	return &Engine{coupons: f, metrics: metrics, now: time.Now}
}

// Validate evaluates oc. Unknown codes yield *UnknownCodesError; malformed
// input yields an error wrapping ErrInvalidOrderContext.
func (e *Engine) Validate(ctx context.Context, oc OrderContext) (*Result, error) {
	codes, err := checkOrderContext(oc)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(codes))
	var unknown []string
	for _, code := range codes {
		rec, err := e.coupons.FindByCode(ctx, code)
		switch {
		case errors.Is(err, ErrNotFound):
			unknown = append(unknown, code)
			continue
		case err != nil:
			return nil, errors.Wrapf(err, "lookup coupon %q", code)
		}
		records = append(records, rec)
	}
	if len(unknown) > 0 {
		e.metrics.validated(ctx, "unknown")
		return nil, &UnknownCodesError{Codes: unknown}
	}

	now := e.now()
	eligible := make([]*Record, 0, len(records))
	var rejected []Rejection
	for _, rec := range records {
		if reason := CheckEligibility(rec, oc, now); reason != Eligible {
			rejected = append(rejected, Rejection{Code: rec.Code, Reason: reason})
			e.metrics.validated(ctx, string(reason))
			continue
		}
		eligible = append(eligible, rec)
	}

	res, err := Resolve(eligible, oc.Subtotal)
	if err != nil {
		return nil, err
	}
	for range res.Accepted {
		e.metrics.validated(ctx, "accepted")
	}
	for range res.Rejected {
		e.metrics.validated(ctx, string(ReasonStackingConflict))
	}

	rejected = append(rejected, res.Rejected...)
	position := make(map[string]int, len(codes))
	for i, c := range codes {
		position[c] = i
	}
	slices.SortStableFunc(rejected, func(a, b Rejection) int {
		return position[a.Code] - position[b.Code]
	})

	result := &Result{
		Subtotal:      oc.Subtotal,
		Accepted:      res.Accepted,
		Rejected:      rejected,
		TotalDiscount: res.TotalDiscount,
		FinalAmount:   oc.Subtotal.Sub(res.TotalDiscount),
	}

	zctx.From(ctx).Debug("Coupons evaluated",
		zap.String("course_id", oc.CourseID),
		zap.Strings("accepted", result.AcceptedCodes()),
		zap.Int("rejected", len(rejected)),
		zap.String("total_discount", result.TotalDiscount.StringFixed(MinorUnits)),
	)
	return result, nil
}

// checkOrderContext rejects malformed input and returns the normalized,
// de-duplicated candidate codes.
func checkOrderContext(oc OrderContext) ([]string, error) {
	if oc.CourseID == "" {
		return nil, errors.Wrap(ErrInvalidOrderContext, "course id is required")
	}
	if oc.Subtotal.IsNegative() {
		return nil, errors.Wrap(ErrInvalidOrderContext, "subtotal must not be negative")
	}
	if !FitsMinorUnits(oc.Subtotal) {
		return nil, errors.Wrap(ErrInvalidOrderContext, "subtotal must have at most 2 decimal places")
	}
	codes := normalizeCodes(oc.Codes)
	if len(codes) == 0 {
		return nil, errors.Wrap(ErrInvalidOrderContext, "at least one code is required")
	}
	for _, c := range codes {
		if c == "" {
			return nil, errors.Wrap(ErrInvalidOrderContext, "code must not be blank")
		}
	}
	return codes, nil
}
