package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(day int) time.Time {
	return time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
}

func TestNewNormalizesToDays(t *testing.T) {
	dr, err := New(d(1).Add(13*time.Hour), d(3).Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, d(1), dr.Start)
	assert.Equal(t, d(3), dr.End)
	assert.Equal(t, 2, dr.Nights())
}

func TestNewRejectsEmptyAndInverted(t *testing.T) {
	_, err := New(d(3), d(3))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(d(4), d(3))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(time.Time{}, d(3))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	base := MustNew(d(5), d(10))
	cases := []struct {
		name  string
		other DateRange
		want  bool
	}{
		{"adjacent after", MustNew(d(10), d(15)), false},
		{"adjacent before", MustNew(d(1), d(5)), false},
		{"inside", MustNew(d(6), d(8)), true},
		{"covering", MustNew(d(1), d(20)), true},
		{"last night", MustNew(d(9), d(12)), true},
		{"first night", MustNew(d(2), d(6)), true},
		{"disjoint", MustNew(d(20), d(25)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(base))
		})
	}
}

func TestClip(t *testing.T) {
	window := MustNew(d(0), d(90))

	clipped, ok := MustNew(d(-3), d(2)).Clip(window)
	require.True(t, ok)
	assert.Equal(t, MustNew(d(0), d(2)), clipped)

	clipped, ok = MustNew(d(88), d(95)).Clip(window)
	require.True(t, ok)
	assert.Equal(t, MustNew(d(88), d(90)), clipped)

	_, ok = MustNew(d(90), d(92)).Clip(window)
	assert.False(t, ok)
}

func TestDaysAndContainsDate(t *testing.T) {
	dr := MustNew(d(1), d(4))
	assert.Equal(t, []time.Time{d(1), d(2), d(3)}, dr.Days())
	assert.True(t, dr.ContainsDate(d(1).Add(5*time.Hour)))
	assert.False(t, dr.ContainsDate(d(4)))
	assert.Equal(t, "2026-10-20/2026-10-23", dr.String())
}
