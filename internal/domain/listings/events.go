package listings

import (
	"time"

	"rentals/internal/domain/shared/money"
)

type ListingRateChanged struct {
	ListingID ListingID
	Previous  money.Money
	Rate      money.Money
	At        time.Time
}

func (e ListingRateChanged) EventName() string     { return "listing.rate_changed" }
func (e ListingRateChanged) AggregateID() string   { return string(e.ListingID) }
func (e ListingRateChanged) OccurredAt() time.Time { return e.At }
