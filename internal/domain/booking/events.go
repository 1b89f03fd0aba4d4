package booking

import (
	"time"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
)

type BookingCreated struct {
	BookingID BookingID
	ListingID listings.ListingID
	UserID    string
	Range     daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingDatesChanged struct {
	BookingID BookingID
	ListingID listings.ListingID
	Previous  daterange.DateRange
	Range     daterange.DateRange
	At        time.Time
}

func (e BookingDatesChanged) EventName() string     { return "booking.dates_changed" }
func (e BookingDatesChanged) AggregateID() string   { return string(e.BookingID) }
func (e BookingDatesChanged) OccurredAt() time.Time { return e.At }

type BookingStatusChanged struct {
	BookingID BookingID
	ListingID listings.ListingID
	Action    Action
	From      Status
	To        Status
	At        time.Time
}

func (e BookingStatusChanged) EventName() string     { return "booking.status_changed" }
func (e BookingStatusChanged) AggregateID() string   { return string(e.BookingID) }
func (e BookingStatusChanged) OccurredAt() time.Time { return e.At }

type BookingRepriced struct {
	BookingID   BookingID
	NightlyRate money.Money
	Previous    money.Money
	Total       money.Money
	At          time.Time
}

func (e BookingRepriced) EventName() string     { return "booking.repriced" }
func (e BookingRepriced) AggregateID() string   { return string(e.BookingID) }
func (e BookingRepriced) OccurredAt() time.Time { return e.At }
