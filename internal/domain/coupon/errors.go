package coupon

import (
	"fmt"
	"strings"
)

// UnknownCodesError is returned when candidate codes do not exist.
type UnknownCodesError struct {
	Codes []string
}

func (e *UnknownCodesError) Error() string {
	return "unknown coupon codes: " + strings.Join(e.Codes, ", ")
}

// ConflictError is returned when redemption lost a quota race for Codes.
// Callers should re-validate the order.
type ConflictError struct {
	Codes []string
}

func (e *ConflictError) Error() string {
	return "coupon redemption conflict: " + strings.Join(e.Codes, ", ")
}

// ValidationError reports an administrative write that breaks a coupon
// invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
