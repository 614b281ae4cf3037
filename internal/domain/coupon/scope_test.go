package coupon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseScope(t *testing.T) {
	all := AllCourses()
	assert.False(t, all.Restricted())
	assert.True(t, all.Allows("anything"))
	assert.Nil(t, all.CourseIDs())

	s, err := RestrictedTo(" go-101 ", "rust-201", "", "go-101")
	require.NoError(t, err)
	assert.True(t, s.Restricted())
	assert.True(t, s.Allows("go-101"))
	assert.False(t, s.Allows("js-301"))
	assert.Equal(t, []string{"go-101", "rust-201"}, s.CourseIDs())

	_, err = RestrictedTo()
	require.ErrorIs(t, err, ErrEmptyRestriction)

	_, err = RestrictedTo(" ", "")
	require.ErrorIs(t, err, ErrEmptyRestriction)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("  save10 "))
	assert.Equal(t, []string{"A1B", "C2D"}, normalizeCodes([]string{"a1b", "C2D", " A1B"}))

	require.NoError(t, ValidateCode("SPRING_SALE-2025"))
	require.Error(t, ValidateCode("AB"))
	require.Error(t, ValidateCode("HAS SPACE"))
	require.Error(t, ValidateCode("lower"))
}
