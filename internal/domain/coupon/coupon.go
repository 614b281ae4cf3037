// Package coupon implements the discount policy of the course marketplace:
// eligibility rules, discount arithmetic, stacking arbitration and the
// atomic redemption of usage quotas.
package coupon

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the running balance.
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountFixed takes a fixed amount capped at the running balance.
	DiscountFixed DiscountType = "FIXED_AMOUNT"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Reason explains why a candidate code was not applied.
type Reason string

const (
	// Eligible is the zero Reason: the coupon passed every rule.
	Eligible Reason = ""

	ReasonInactive          Reason = "INACTIVE"
	ReasonNotYetValid       Reason = "NOT_YET_VALID"
	ReasonExpired           Reason = "EXPIRED"
	ReasonQuotaExhausted    Reason = "QUOTA_EXHAUSTED"
	ReasonBelowMinimum      Reason = "BELOW_MINIMUM"
	ReasonCourseNotEligible Reason = "COURSE_NOT_ELIGIBLE"
	ReasonStackingConflict  Reason = "STACKING_CONFLICT"
)

var (
	// ErrNotFound is returned by stores when no coupon has the given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrCodeExists is returned when creating a coupon whose code is taken.
	ErrCodeExists = errors.New("coupon code already exists")
	// ErrUsageLimitBelowUsed is returned when an edit would set the usage
	// limit below the number of redemptions already made.
	ErrUsageLimitBelowUsed = errors.New("usage limit below used count")
	// ErrInvalidOrderContext is returned for malformed validation input.
	ErrInvalidOrderContext = errors.New("invalid order context")
)

// Terms are the administratively editable parameters of a coupon.
type Terms struct {
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	// MinAmount is the subtotal floor. Zero means no floor.
	MinAmount decimal.Decimal
	// MaxDiscount caps PERCENTAGE discounts when valid.
	MaxDiscount decimal.NullDecimal
	// UsageLimit bounds redemptions. Nil means unlimited.
	UsageLimit  *int64
	ValidFrom   time.Time
	ValidUntil  *time.Time
	Courses     CourseScope
	Stackable   bool
	Description string
}

// Record is a persisted coupon.
type Record struct {
	Code string
	Terms
	UsedCount int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining returns the number of redemptions left, or -1 when unlimited.
func (r *Record) Remaining() int64 {
	if r.UsageLimit == nil {
		return -1
	}
	return max(*r.UsageLimit-r.UsedCount, 0)
}

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,64}$`)

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode reports whether an already normalized code has the accepted
// shape.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return &ValidationError{Field: "code", Reason: "must be 3-64 characters of A-Z, 0-9, '_' or '-'"}
	}
	return nil
}

// normalizeCodes normalizes codes and drops repeats, keeping the first
// occurrence of each.
func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = NormalizeCode(c)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// OrderContext describes the purchase a set of codes is evaluated against.
type OrderContext struct {
	CourseID string
	Subtotal decimal.Decimal
	BuyerID  string
	Codes    []string
}

// Applied is an accepted code and the amount it took off.
type Applied struct {
	Code   string
	Amount decimal.Decimal
}

// Rejection is a code that was not applied and why.
type Rejection struct {
	Code   string
	Reason Reason
}

// Result is the outcome of evaluating an OrderContext.
type Result struct {
	Subtotal      decimal.Decimal
	Accepted      []Applied
	Rejected      []Rejection
	TotalDiscount decimal.Decimal
	FinalAmount   decimal.Decimal
}

// AcceptedCodes returns the accepted codes in application order.
func (r *Result) AcceptedCodes() []string {
	codes := make([]string, len(r.Accepted))
	for i, a := range r.Accepted {
		codes[i] = a.Code
	}
	return codes
}

// Finder looks coupons up by normalized code.
type Finder interface {
	// FindByCode returns ErrNotFound when the code is unknown.
	FindByCode(ctx context.Context, code string) (*Record, error)
}

// Redeemer atomically consumes coupon quota for an order.
type Redeemer interface {
	// Redeem increments the used count of every code for orderID in a single
	// all-or-nothing unit. An increment only succeeds while the coupon is
	// active, inside its window and below its usage limit. When any code
	// fails nothing is changed and the failing codes are returned. Redeeming
	// an order that was already redeemed is a no-op.
	Redeem(ctx context.Context, orderID string, codes []string, now time.Time) (conflicts []string, err error)
}

// Store is the full persistence surface used by the engine and admin.
type Store interface {
	Finder
	Redeemer
	List(ctx context.Context) ([]Record, error)
	// Create returns ErrCodeExists for a duplicate code.
	Create(ctx context.Context, rec *Record) error
	// UpdateTerms returns ErrUsageLimitBelowUsed when terms.UsageLimit is
	// below the stored used count.
	UpdateTerms(ctx context.Context, code string, terms Terms, now time.Time) (*Record, error)
	SetActive(ctx context.Context, code string, active bool, now time.Time) (*Record, error)
}
