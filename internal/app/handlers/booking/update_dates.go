package booking

import (
	"context"
	"fmt"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/shared/clock"
	domainrange "rentals/internal/domain/shared/daterange"
)

const UpdateBookingDatesKey = "booking.update_dates"

type UpdateBookingDatesCommand struct {
	Principal policies.Principal
	BookingID string    `validate:"required"`
	Start     time.Time `validate:"required"`
	End       time.Time `validate:"required"`
}

func (c UpdateBookingDatesCommand) Key() string { return UpdateBookingDatesKey }

func (c UpdateBookingDatesCommand) PrincipalOf() policies.Principal { return c.Principal }

type UpdateBookingDatesHandler struct {
	*Coordinator
}

func (h *UpdateBookingDatesHandler) Handle(ctx context.Context, cmd UpdateBookingDatesCommand) (*dto.Booking, error) {
	dr, err := domainrange.New(cmd.Start, cmd.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainbooking.ErrInvalidRange, err)
	}

	scope, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	ctx, unit := scope.Ctx, scope.Unit

	b, listing, err := h.lockedBooking(ctx, unit, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	role := h.roles().Resolve(ctx, cmd.Principal, b, listing)
	if !role.Has(domainbooking.RoleTenant) && !role.Has(domainbooking.RoleAdmin) {
		return nil, &domainbooking.ForbiddenError{Action: "update dates", Actor: role, Allowed: domainbooking.RoleTenant | domainbooking.RoleAdmin}
	}
	if b.Status == domainbooking.StatusDeleted {
		return nil, domainbooking.ErrCannotModifyDeleted
	}
	if err := domainbooking.ValidateDateRange(dr, clock.Today(h.clock())); err != nil {
		return nil, err
	}
	ok, err := h.engine().IsAvailable(ctx, unit.Bookings(), listing.ID, dr, b.ID)
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
	if err := b.Reschedule(dr, quote, h.clock().Now()); err != nil {
		return nil, err
	}
	if err := h.save(ctx, unit, b, listing); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}

	h.logger().Info("booking dates changed",
		"booking_id", b.ID,
		"listing_id", b.ListingID,
		"range", b.Range.String(),
		"total", b.TotalPrice.String(),
	)
	out := dto.MapBooking(b)
	return &out, nil
}

var _ commands.Handler[UpdateBookingDatesCommand, *dto.Booking] = (*UpdateBookingDatesHandler)(nil)
