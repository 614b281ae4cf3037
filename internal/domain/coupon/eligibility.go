package coupon

import "time"

// CheckEligibility applies the coupon rules to oc at instant now and returns
// the first failing Reason, or Eligible. Rules run in a fixed order: active
// flag, validity window, usage quota, subtotal floor, course scope.
func CheckEligibility(rec *Record, oc OrderContext, now time.Time) Reason {
	if !rec.Active {
		return ReasonInactive
	}
	if now.Before(rec.ValidFrom) {
		return ReasonNotYetValid
	}
	if rec.ValidUntil != nil && now.After(*rec.ValidUntil) {
		return ReasonExpired
	}
	if rec.UsageLimit != nil && rec.UsedCount >= *rec.UsageLimit {
		return ReasonQuotaExhausted
	}
	if oc.Subtotal.LessThan(rec.MinAmount) {
		return ReasonBelowMinimum
	}
	if !rec.Courses.Allows(oc.CourseID) {
		return ReasonCourseNotEligible
	}
	return Eligible
}
