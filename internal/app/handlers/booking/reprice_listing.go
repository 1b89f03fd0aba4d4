package booking

import (
	"context"
	"errors"

	"rentals/internal/app/commands"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/uow"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/money"
)

const RepriceListingBookingsKey = "listing.reprice_bookings"

// RepriceListingBookingsCommand brings the listing read model to a new rate
// and reprices every open booking of the listing. OwnerID and Title are used
// only to register a listing seen for the first time.
type RepriceListingBookingsCommand struct {
	ListingID   string      `validate:"required"`
	NightlyRate money.Money `validate:"required"`
	OwnerID     string
	Title       string
}

func (c RepriceListingBookingsCommand) Key() string { return RepriceListingBookingsKey }

type RepriceListingBookingsResult struct {
	ListingID   string `json:"listing_id"`
	RateChanged bool   `json:"rate_changed"`
	Repriced    int    `json:"repriced"`
}

type RepriceListingBookingsHandler struct {
	*Coordinator
}

func (h *RepriceListingBookingsHandler) Handle(ctx context.Context, cmd RepriceListingBookingsCommand) (*RepriceListingBookingsResult, error) {
	scope, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	ctx, unit := scope.Ctx, scope.Unit

	listingID := domainlistings.ListingID(cmd.ListingID)
	if err := unit.LockListing(ctx, listingID); err != nil {
		return nil, err
	}
	now := h.clock().Now()
	changed := false
	listing, err := unit.Listings().ByID(ctx, listingID)
	switch {
	case errors.Is(err, domainlistings.ErrListingNotFound) && cmd.OwnerID != "":
		listing, err = domainlistings.NewListing(domainlistings.CreateListingParams{
			ID:          listingID,
			Owner:       domainlistings.OwnerID(cmd.OwnerID),
			Title:       cmd.Title,
			NightlyRate: cmd.NightlyRate,
			Now:         now,
		})
		if err != nil {
			return nil, err
		}
		changed = true
	case err != nil:
		return nil, err
	default:
		changed, err = listing.ChangeRate(cmd.NightlyRate, now)
		if err != nil {
			return nil, err
		}
	}
	// The rate change originates in the listings service; it is not re-published.
	listing.ClearEvents()
	if changed {
		if err := unit.Listings().Save(ctx, listing); err != nil {
			return nil, err
		}
	}

	bookings, err := unit.Bookings().ListByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	repriced := 0
	for _, b := range bookings {
		if b.Status.Terminal() {
			continue
		}
		quote, err := h.pricing().Quote(ctx, listing, b.Range)
		if err != nil {
			return nil, err
		}
		if !b.Reprice(quote, now) {
			continue
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return nil, err
		}
		if err := h.record(ctx, unit, b.PullEvents()); err != nil {
			return nil, err
		}
		repriced++
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}

	h.logger().Info("listing bookings repriced",
		"listing_id", listingID,
		"rate", listing.NightlyRate.String(),
		"rate_changed", changed,
		"repriced", repriced,
	)
	return &RepriceListingBookingsResult{ListingID: cmd.ListingID, RateChanged: changed, Repriced: repriced}, nil
}

var _ commands.Handler[RepriceListingBookingsCommand, *RepriceListingBookingsResult] = (*RepriceListingBookingsHandler)(nil)
