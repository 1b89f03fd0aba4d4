package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
)

var today = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return today.AddDate(0, 0, n) }

func quote(t *testing.T, rate int64, dr daterange.DateRange) pricing.Quote {
	t.Helper()
	q, err := pricing.NightlyCalculator{}.Quote(money.Must(rate, "USD"), dr)
	require.NoError(t, err)
	return q
}

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	dr := daterange.MustNew(day(10), day(13))
	b, err := NewBooking(CreateParams{
		ID:        "b-1",
		ListingID: "l-1",
		UserID:    "tenant",
		Range:     dr,
		Quote:     quote(t, 10000, dr),
		CreatedAt: today.Add(9 * time.Hour),
	})
	require.NoError(t, err)
	return b
}

func TestNewBookingStartsPending(t *testing.T) {
	b := newTestBooking(t)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, "300.00", b.TotalPrice.Decimal())
	assert.True(t, b.StatusChangedAt.IsZero())
	evs := b.PendingEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, "booking.created", evs[0].EventName())
}

func TestApplyStampsStatusChange(t *testing.T) {
	b := newTestBooking(t)
	b.Status = StatusConfirmed
	first := today.Add(10 * time.Hour)

	from, err := b.Apply(TransitionRequest{Action: ActionComplete, Actor: RoleOwner}, first)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, from)
	assert.Equal(t, StatusCompleted, b.Status)
	assert.Equal(t, first, b.StatusChangedAt)

	_, err = b.Apply(TransitionRequest{Action: ActionComplete, Actor: RoleOwner}, first.Add(time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, first, b.StatusChangedAt)
	assert.Equal(t, StatusCompleted, b.Status)
}

func TestRescheduleRejectsDeleted(t *testing.T) {
	b := newTestBooking(t)
	b.Status = StatusDeleted
	dr := daterange.MustNew(day(20), day(22))
	err := b.Reschedule(dr, quote(t, 10000, dr), today)
	assert.ErrorIs(t, err, ErrCannotModifyDeleted)
	assert.Equal(t, daterange.MustNew(day(10), day(13)), b.Range)
}

func TestRescheduleReprices(t *testing.T) {
	b := newTestBooking(t)
	b.ClearEvents()
	dr := daterange.MustNew(day(20), day(25))
	require.NoError(t, b.Reschedule(dr, quote(t, 10000, dr), today))
	assert.Equal(t, dr, b.Range)
	assert.Equal(t, "500.00", b.TotalPrice.Decimal())
	names := []string{}
	for _, ev := range b.PullEvents() {
		names = append(names, ev.EventName())
	}
	assert.Equal(t, []string{"booking.dates_changed", "booking.repriced"}, names)
}

func TestRepriceIsIdempotent(t *testing.T) {
	b := newTestBooking(t)
	b.ClearEvents()
	assert.False(t, b.Reprice(quote(t, 10000, b.Range), today))
	assert.Equal(t, "300.00", b.TotalPrice.Decimal())
	assert.Empty(t, b.PendingEvents())

	assert.True(t, b.Reprice(quote(t, 12000, b.Range), today))
	assert.Equal(t, "360.00", b.TotalPrice.Decimal())
}

func TestRepriceSkipsFinishedBookings(t *testing.T) {
	b := newTestBooking(t)
	b.Status = StatusCanceled
	assert.False(t, b.Reprice(quote(t, 20000, b.Range), today))
	assert.Equal(t, "300.00", b.TotalPrice.Decimal())
}

func TestValidateDateRangeHorizon(t *testing.T) {
	now := today.Add(23 * time.Hour)
	cases := []struct {
		name  string
		start int
		end   int
		ok    bool
	}{
		{"today", 0, 1, true},
		{"last bookable night", 89, 90, true},
		{"whole horizon", 0, 90, true},
		{"yesterday", -1, 2, false},
		{"start on horizon", 90, 91, false},
		{"start past horizon", 91, 92, false},
		{"end past horizon", 85, 91, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDateRange(daterange.MustNew(day(tc.start), day(tc.end)), now)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidRange)
			}
		})
	}
	assert.ErrorIs(t, ValidateDateRange(daterange.DateRange{Start: day(3), End: day(3)}, now), ErrInvalidRange)
}
