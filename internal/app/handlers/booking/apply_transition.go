package booking

import (
	"context"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
)

const ApplyTransitionKey = "booking.transition"

type ApplyTransitionCommand struct {
	Principal policies.Principal
	BookingID string `validate:"required"`
	Action    string `validate:"required"`
}

func (c ApplyTransitionCommand) Key() string { return ApplyTransitionKey }

func (c ApplyTransitionCommand) PrincipalOf() policies.Principal { return c.Principal }

type ApplyTransitionHandler struct {
	*Coordinator
}

func (h *ApplyTransitionHandler) Handle(ctx context.Context, cmd ApplyTransitionCommand) (*dto.Booking, error) {
	action, err := domainbooking.ParseAction(cmd.Action)
	if err != nil {
		return nil, err
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
	from, err := b.Apply(domainbooking.TransitionRequest{Action: action, Actor: role}, h.clock().Now())
	if err != nil {
		return nil, err
	}
	// A booking that starts blocking must not collide with one that already does.
	if b.Status.Blocking() && !from.Blocking() {
		conflicts, err := h.engine().Conflicts(ctx, unit.Bookings(), b.ListingID, b.Range, b.ID)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			return nil, domainbooking.ErrDatesUnavailable
		}
	}
	if err := h.save(ctx, unit, b, listing); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}

	h.logger().Info("booking status changed",
		"booking_id", b.ID,
		"listing_id", b.ListingID,
		"action", action,
		"from", from,
		"status", b.Status,
		"actor", role.String(),
	)
	out := dto.MapBooking(b)
	return &out, nil
}

var _ commands.Handler[ApplyTransitionCommand, *dto.Booking] = (*ApplyTransitionHandler)(nil)
