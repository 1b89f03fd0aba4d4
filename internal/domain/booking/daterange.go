package booking

import (
	"fmt"
	"time"

	"rentals/internal/domain/shared/daterange"
)

// HorizonDays is how far ahead of today a stay may reach.
const HorizonDays = 90

// Horizon returns the bookable window [today, today+HorizonDays).
func Horizon(today time.Time) daterange.DateRange {
	start := daterange.Day(today)
	return daterange.DateRange{Start: start, End: start.AddDate(0, 0, HorizonDays)}
}

// ValidateDateRange enforces start < end, today <= start and
// end <= today+HorizonDays.
func ValidateDateRange(dr daterange.DateRange, today time.Time) error {
	if err := dr.Validate(); err != nil {
		return fmt.Errorf("%w: start date must be before end date", ErrInvalidRange)
	}
	window := Horizon(today)
	if dr.Start.Before(window.Start) {
		return fmt.Errorf("%w: start date cannot be in the past", ErrInvalidRange)
	}
	if dr.End.After(window.End) {
		return fmt.Errorf("%w: dates cannot reach more than %d days ahead", ErrInvalidRange, HorizonDays)
	}
	return nil
}
