package booking

import (
	"context"
	"fmt"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/middleware"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/clock"
	domainrange "rentals/internal/domain/shared/daterange"
)

const CreateBookingKey = "booking.create"

type CreateBookingCommand struct {
	Principal policies.Principal
	ListingID string    `validate:"required"`
	Start     time.Time `validate:"required"`
	End       time.Time `validate:"required"`
	// OnBehalfOf is honoured for admins only; everyone else books for themselves.
	OnBehalfOf      string
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return CreateBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c CreateBookingCommand) PrincipalOf() policies.Principal { return c.Principal }

type CreateBookingHandler struct {
	*Coordinator
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	dr, err := domainrange.New(cmd.Start, cmd.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainbooking.ErrInvalidRange, err)
	}
	if err := domainbooking.ValidateDateRange(dr, clock.Today(h.clock())); err != nil {
		return nil, err
	}
	userID := cmd.Principal.UserID
	if cmd.Principal.Admin && cmd.OnBehalfOf != "" {
		userID = cmd.OnBehalfOf
	}

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
	listing, err := unit.Listings().ByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	ok, err := h.engine().IsAvailable(ctx, unit.Bookings(), listing.ID, dr, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainbooking.ErrDatesUnavailable
	}
	quote, err := h.pricing().Quote(ctx, listing, dr)
	if err != nil {
		return nil, err
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(h.newID()),
		ListingID: listing.ID,
		UserID:    userID,
		Range:     dr,
		Quote:     quote,
		CreatedAt: h.clock().Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := h.save(ctx, unit, b, listing); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}

	h.logger().Info("booking created",
		"booking_id", b.ID,
		"listing_id", b.ListingID,
		"user_id", b.UserID,
		"range", b.Range.String(),
		"total", b.TotalPrice.String(),
	)
	out := dto.MapBooking(b)
	return &out, nil
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
