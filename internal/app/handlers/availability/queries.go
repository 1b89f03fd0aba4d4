package availability

import (
	"context"
	"fmt"
	"time"

	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainavailability "rentals/internal/domain/availability"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainrange "rentals/internal/domain/shared/daterange"
)

const (
	CheckAvailabilityKey = "availability.check"
	AvailableDatesKey    = "availability.dates"
)

type CheckAvailabilityQuery struct {
	ListingID        string    `validate:"required"`
	Start            time.Time `validate:"required"`
	End              time.Time `validate:"required"`
	ExcludeBookingID string
}

func (q CheckAvailabilityQuery) Key() string { return CheckAvailabilityKey }

type AvailableDatesQuery struct {
	ListingID string `validate:"required"`
}

func (q AvailableDatesQuery) Key() string { return AvailableDatesKey }

type Handlers struct {
	UoWFactory uow.UoWFactory
	Engine     domainavailability.Engine
}

// Check answers IsAvailable for a listing that must exist.
func (h *Handlers) Check(ctx context.Context, q CheckAvailabilityQuery) (*dto.Availability, error) {
	dr, err := domainrange.New(q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainbooking.ErrInvalidRange, err)
	}
	scope, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	listing, err := scope.Unit.Listings().ByID(scope.Ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return nil, err
	}
	ok, err := h.Engine.IsAvailable(scope.Ctx, scope.Unit.Bookings(), listing.ID, dr, domainbooking.BookingID(q.ExcludeBookingID))
	if err != nil {
		return nil, err
	}
	return &dto.Availability{
		ListingID: q.ListingID,
		StartDate: dr.Start.Format(dto.DateLayout),
		EndDate:   dr.End.Format(dto.DateLayout),
		Available: ok,
	}, nil
}

// Dates lists the free days of the booking horizon grouped by month.
func (h *Handlers) Dates(ctx context.Context, q AvailableDatesQuery) (*dto.AvailableDates, error) {
	scope, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	listing, err := scope.Unit.Listings().ByID(scope.Ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return nil, err
	}
	months, err := h.Engine.AvailableDatesByMonth(scope.Ctx, scope.Unit.Bookings(), listing.ID)
	if err != nil {
		return nil, err
	}
	return &dto.AvailableDates{ListingID: q.ListingID, Months: months}, nil
}

func (h *Handlers) Register(bus *queries.InMemoryBus) {
	queries.RegisterHandler[CheckAvailabilityQuery, *dto.Availability](bus, CheckAvailabilityKey, queries.HandlerFunc[CheckAvailabilityQuery, *dto.Availability](h.Check))
	queries.RegisterHandler[AvailableDatesQuery, *dto.AvailableDates](bus, AvailableDatesKey, queries.HandlerFunc[AvailableDatesQuery, *dto.AvailableDates](h.Dates))
}
