package coupon

import (
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// ErrEmptyRestriction is returned when a restricted scope has no courses.
var ErrEmptyRestriction = errors.New("course restriction must name at least one course")

// CourseScope says which courses a coupon applies to. The zero value
// applies to all courses.
type CourseScope struct {
	courses map[string]struct{}
}

// AllCourses returns a scope matching every course.
func AllCourses() CourseScope {
	return CourseScope{}
}

// RestrictedTo returns a scope matching only the given course ids.
// Blank ids are ignored; at least one id must remain.
func RestrictedTo(ids ...string) (CourseScope, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		return CourseScope{}, ErrEmptyRestriction
	}
	return CourseScope{courses: set}, nil
}

// Restricted reports whether the scope limits courses.
func (s CourseScope) Restricted() bool {
	return s.courses != nil
}

// Allows reports whether courseID is covered.
func (s CourseScope) Allows(courseID string) bool {
	if s.courses == nil {
		return true
	}
	_, ok := s.courses[courseID]
	return ok
}

// CourseIDs returns the restricted ids in sorted order, or nil for
// AllCourses.
func (s CourseScope) CourseIDs() []string {
	if s.courses == nil {
		return nil
	}
	ids := make([]string, 0, len(s.courses))
	for id := range s.courses {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
