package availability

import (
	"context"
	"errors"
	"sort"
	"time"

	"rentals/internal/domain/booking"
	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/clock"
	"rentals/internal/domain/shared/daterange"
)

var ErrClockRequired = errors.New("availability: clock required")

// Engine answers availability questions from a listing's blocking bookings.
// It holds no state; callers pass the query scoped to their unit of work.
type Engine struct {
	Clock clock.Clock
}

func NewEngine(c clock.Clock) Engine {
	return Engine{Clock: c}
}

// MonthDates groups free days of one calendar month.
type MonthDates struct {
	Month string   `json:"month"`
	Dates []string `json:"dates"`
}

// IsAvailable reports whether dr can be booked on the listing. A range that
// breaks the date rules is never available. exclude drops one booking from the
// blocking set so a booking can be checked against its own new dates.
func (e Engine) IsAvailable(ctx context.Context, q booking.BlockingQuery, listingID listings.ListingID, dr daterange.DateRange, exclude booking.BookingID) (bool, error) {
	today, err := e.today()
	if err != nil {
		return false, err
	}
	if err := booking.ValidateDateRange(dr, today); err != nil {
		return false, nil
	}
	conflicts, err := e.Conflicts(ctx, q, listingID, dr, exclude)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts lists the blocking bookings overlapping dr without applying the
// horizon rule.
func (e Engine) Conflicts(ctx context.Context, q booking.BlockingQuery, listingID listings.ListingID, dr daterange.DateRange, exclude booking.BookingID) ([]*booking.Booking, error) {
	blockers, err := q.Blocking(ctx, listingID, dr, exclude)
	if err != nil {
		return nil, err
	}
	out := make([]*booking.Booking, 0, len(blockers))
	for _, b := range blockers {
		if b == nil || b.ID == exclude || !b.Status.Blocking() {
			continue
		}
		if b.Range.Overlaps(dr) {
			out = append(out, b)
		}
	}
	return out, nil
}

// AvailableDates returns the free days of [today, today+HorizonDays) in
// ascending order.
func (e Engine) AvailableDates(ctx context.Context, q booking.BlockingQuery, listingID listings.ListingID) ([]time.Time, error) {
	today, err := e.today()
	if err != nil {
		return nil, err
	}
	window := booking.Horizon(today)
	blockers, err := q.Blocking(ctx, listingID, window, "")
	if err != nil {
		return nil, err
	}
	taken := make([]bool, booking.HorizonDays)
	for _, b := range blockers {
		if b == nil || !b.Status.Blocking() {
			continue
		}
		clipped, ok := b.Range.Clip(window)
		if !ok {
			continue
		}
		first := int(clipped.Start.Sub(window.Start) / (24 * time.Hour))
		for i := 0; i < clipped.Nights(); i++ {
			taken[first+i] = true
		}
	}
	free := make([]time.Time, 0, booking.HorizonDays)
	for i, busy := range taken {
		if !busy {
			free = append(free, window.Start.AddDate(0, 0, i))
		}
	}
	return free, nil
}

// AvailableDatesByMonth groups AvailableDates by YYYY-MM, months ascending.
func (e Engine) AvailableDatesByMonth(ctx context.Context, q booking.BlockingQuery, listingID listings.ListingID) ([]MonthDates, error) {
	dates, err := e.AvailableDates(ctx, q, listingID)
	if err != nil {
		return nil, err
	}
	return GroupByMonth(dates), nil
}

func GroupByMonth(dates []time.Time) []MonthDates {
	index := make(map[string]int)
	out := make([]MonthDates, 0, 4)
	for _, d := range dates {
		key := d.Format("2006-01")
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, MonthDates{Month: key})
		}
		out[i].Dates = append(out[i].Dates, d.Format(time.DateOnly))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	for i := range out {
		sort.Strings(out[i].Dates)
	}
	return out
}

func (e Engine) today() (time.Time, error) {
	if e.Clock == nil {
		return time.Time{}, ErrClockRequired
	}
	return clock.Today(e.Clock), nil
}
