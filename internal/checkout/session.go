// Package checkout holds the buyer side of coupon application: a session
// tracking the applied codes of one checkout and an HTTP client for the
// coupon API.
package checkout

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/coursemart/internal/domain/coupon"
)

// Session is the coupon state of one checkout. Every change to the
// candidate codes re-runs validation. A Session is owned by a single caller
// and is not safe for concurrent use.
type Session struct {
	validator coupon.Validator
	courseID  string
	subtotal  decimal.Decimal
	buyerID   string

	codes  []string
	result *coupon.Result
}

// NewSession starts a checkout of courseID at subtotal with no codes.
func NewSession(v coupon.Validator, courseID string, subtotal decimal.Decimal, buyerID string) *Session {
	s := &Session{
		validator: v,
		courseID:  courseID,
		subtotal:  subtotal,
		buyerID:   buyerID,
	}
	s.result = s.undiscounted()
	return s
}

func (s *Session) undiscounted() *coupon.Result {
	return &coupon.Result{
		Subtotal:      s.subtotal,
		TotalDiscount: decimal.Zero,
		FinalAmount:   s.subtotal,
	}
}

// Add applies code and re-validates. When validation fails, e.g. the code
// does not exist, the code is dropped and the previous result is kept.
// Rejected but existing codes stay applied so the buyer sees the reason.
func (s *Session) Add(ctx context.Context, code string) (*coupon.Result, error) {
	code = coupon.NormalizeCode(code)
	if slices.Contains(s.codes, code) {
		return s.result, nil
	}
	return s.apply(ctx, append(slices.Clone(s.codes), code))
}

// Remove drops code and re-validates what is left.
func (s *Session) Remove(ctx context.Context, code string) (*coupon.Result, error) {
	code = coupon.NormalizeCode(code)
	i := slices.Index(s.codes, code)
	if i < 0 {
		return s.result, nil
	}
	return s.apply(ctx, slices.Delete(slices.Clone(s.codes), i, i+1))
}

// Refresh re-validates the current codes, e.g. after finalization reported
// a redemption conflict.
func (s *Session) Refresh(ctx context.Context) (*coupon.Result, error) {
	return s.apply(ctx, s.codes)
}

func (s *Session) apply(ctx context.Context, codes []string) (*coupon.Result, error) {
	if len(codes) == 0 {
		s.codes = nil
		s.result = s.undiscounted()
		return s.result, nil
	}
	res, err := s.validator.Validate(ctx, coupon.OrderContext{
		CourseID: s.courseID,
		Subtotal: s.subtotal,
		BuyerID:  s.buyerID,
		Codes:    codes,
	})
	if err != nil {
		return nil, err
	}
	s.codes = codes
	s.result = res
	return res, nil
}

// Codes returns the applied codes in the order they were added.
func (s *Session) Codes() []string {
	return slices.Clone(s.codes)
}

// Result returns the last successful evaluation.
func (s *Session) Result() *coupon.Result {
	return s.result
}

// Accepted returns the codes contributing to the current discount.
func (s *Session) Accepted() []string {
	return s.result.AcceptedCodes()
}

// OrderContext returns the order the session describes, carrying the
// applied codes.
func (s *Session) OrderContext() coupon.OrderContext {
	return coupon.OrderContext{
		CourseID: s.courseID,
		Subtotal: s.subtotal,
		BuyerID:  s.buyerID,
		Codes:    s.Codes(),
	}
}
