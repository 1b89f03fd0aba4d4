package booking

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"rentals/internal/app/outbox"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	"rentals/internal/domain/availability"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/clock"
	"rentals/internal/domain/shared/events"
)

// Coordinator holds what every booking write needs. Each handler runs its
// check-then-act sequence inside one unit of work holding the listing lock.
type Coordinator struct {
	UoWFactory   uow.UoWFactory
	Availability availability.Engine
	Pricing      policies.PricingPort
	Roles        policies.RoleResolver
	Clock        clock.Clock
	Encoder      outbox.EventEncoder
	Logger       *slog.Logger
	NewID        func() string
}

func NewCoordinator(factory uow.UoWFactory, clk clock.Clock, logger *slog.Logger) *Coordinator {
	if clk == nil {
		clk = clock.System{}
	}
	return &Coordinator{
		UoWFactory:   factory,
		Availability: availability.NewEngine(clk),
		Pricing:      policies.ListingRatePricing{},
		Roles:        policies.OwnershipResolver{},
		Clock:        clk,
		Encoder:      outbox.JSONEventEncoder{},
		Logger:       logger,
		NewID:        uuid.NewString,
	}
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (c *Coordinator) clock() clock.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return clock.System{}
}

func (c *Coordinator) engine() availability.Engine {
	if c.Availability.Clock == nil {
		return availability.NewEngine(c.clock())
	}
	return c.Availability
}

func (c *Coordinator) pricing() policies.PricingPort {
	if c.Pricing != nil {
		return c.Pricing
	}
	return policies.ListingRatePricing{}
}

func (c *Coordinator) roles() policies.RoleResolver {
	if c.Roles != nil {
		return c.Roles
	}
	return policies.OwnershipResolver{}
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

// lockedBooking loads a booking, takes its listing lock and reloads it so the
// returned state cannot change until the unit of work ends.
func (c *Coordinator) lockedBooking(ctx context.Context, unit uow.UnitOfWork, id domainbooking.BookingID) (*domainbooking.Booking, *domainlistings.Listing, error) {
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := unit.LockListing(ctx, b.ListingID); err != nil {
		return nil, nil, err
	}
	b, err = unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	listing, err := unit.Listings().ByID(ctx, b.ListingID)
	if err != nil {
		return nil, nil, err
	}
	return b, listing, nil
}

// save reprices b from the listing's current rate, stores it and queues its
// events in the same unit of work.
func (c *Coordinator) save(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, listing *domainlistings.Listing) error {
	if !b.Status.Terminal() {
		quote, err := c.pricing().Quote(ctx, listing, b.Range)
		if err != nil {
			return fmt.Errorf("booking: price %s: %w", b.ID, err)
		}
		b.Reprice(quote, c.clock().Now())
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return err
	}
	return c.record(ctx, unit, b.PullEvents())
}

func (c *Coordinator) record(ctx context.Context, unit uow.UnitOfWork, evs []events.DomainEvent) error {
	encoder := c.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{IDGenerator: c.newID}
	}
	return outbox.RecordDomainEvents(ctx, unit.Outbox(), encoder, evs)
}

// visible applies the listing rule for deleted bookings: only admins see them.
func visible(p policies.Principal, b *domainbooking.Booking) bool {
	return p.Admin || b.Status != domainbooking.StatusDeleted
}
