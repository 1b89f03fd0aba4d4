package policies

import (
	"context"

	domainlistings "rentals/internal/domain/listings"
	domainpricing "rentals/internal/domain/pricing"
	domainrange "rentals/internal/domain/shared/daterange"
)

type PricingPort interface {
	Quote(ctx context.Context, listing *domainlistings.Listing, dr domainrange.DateRange) (domainpricing.Quote, error)
}

// ListingRatePricing prices from the listing's current nightly rate. Callers
// pass a freshly loaded listing so the rate is never stale.
type ListingRatePricing struct {
	Calculator domainpricing.Calculator
}

func (p ListingRatePricing) Quote(_ context.Context, listing *domainlistings.Listing, dr domainrange.DateRange) (domainpricing.Quote, error) {
	if listing == nil {
		return domainpricing.Quote{}, domainlistings.ErrListingNotFound
	}
	calc := p.Calculator
	if calc == nil {
		calc = domainpricing.NightlyCalculator{}
	}
	return calc.Quote(listing.NightlyRate, dr)
}
