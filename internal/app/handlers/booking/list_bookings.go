package booking

import (
	"context"
	"sort"

	"rentals/internal/app/dto"
	"rentals/internal/app/handlers/support"
	"rentals/internal/app/policies"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
)

const (
	ListUserBookingsKey    = "booking.list_user"
	ListListingBookingsKey = "booking.list_listing"
	ListOwnerBookingsKey   = "booking.list_owner"
	GetBookingKey          = "booking.get"
)

type ListUserBookingsQuery struct {
	Principal policies.Principal
}

func (q ListUserBookingsQuery) Key() string { return ListUserBookingsKey }

func (q ListUserBookingsQuery) PrincipalOf() policies.Principal { return q.Principal }

type ListListingBookingsQuery struct {
	Principal policies.Principal
	ListingID string `validate:"required"`
}

func (q ListListingBookingsQuery) Key() string { return ListListingBookingsKey }

func (q ListListingBookingsQuery) PrincipalOf() policies.Principal { return q.Principal }

type ListOwnerBookingsQuery struct {
	Principal policies.Principal
}

func (q ListOwnerBookingsQuery) Key() string { return ListOwnerBookingsKey }

func (q ListOwnerBookingsQuery) PrincipalOf() policies.Principal { return q.Principal }

type GetBookingQuery struct {
	Principal policies.Principal
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return GetBookingKey }

func (q GetBookingQuery) PrincipalOf() policies.Principal { return q.Principal }

// BookingQueries serves the read side. Deleted bookings are hidden from
// everyone but admins.
type BookingQueries struct {
	UoWFactory uow.UoWFactory
	Roles      policies.RoleResolver
}

func (h *BookingQueries) roles() policies.RoleResolver {
	if h.Roles != nil {
		return h.Roles
	}
	return policies.OwnershipResolver{}
}

func (h *BookingQueries) ListUser(ctx context.Context, q ListUserBookingsQuery) (*dto.BookingCollection, error) {
	scope, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	items, err := scope.Unit.Bookings().ListByUser(scope.Ctx, q.Principal.UserID)
	if err != nil {
		return nil, err
	}
	return collect(q.Principal, items), nil
}

func (h *BookingQueries) ListListing(ctx context.Context, q ListListingBookingsQuery) (*dto.BookingCollection, error) {
	scope, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	listing, err := scope.Unit.Listings().ByID(scope.Ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return nil, err
	}
	role := h.roles().Resolve(scope.Ctx, q.Principal, nil, listing)
	if !role.Has(domainbooking.RoleOwner) && !role.Has(domainbooking.RoleAdmin) {
		return nil, &domainbooking.ForbiddenError{Action: "list bookings", Actor: role, Allowed: domainbooking.RoleOwner | domainbooking.RoleAdmin}
	}
	items, err := scope.Unit.Bookings().ListByListing(scope.Ctx, listing.ID)
	if err != nil {
		return nil, err
	}
	return collect(q.Principal, items), nil
}

func (h *BookingQueries) ListOwner(ctx context.Context, q ListOwnerBookingsQuery) (*dto.BookingCollection, error) {
	scope, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	owned, err := scope.Unit.Listings().ByOwner(scope.Ctx, domainlistings.OwnerID(q.Principal.UserID))
	if err != nil {
		return nil, err
	}
	var items []*domainbooking.Booking
	for _, listing := range owned {
		listingItems, err := scope.Unit.Bookings().ListByListing(scope.Ctx, listing.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, listingItems...)
	}
	return collect(q.Principal, items), nil
}

func (h *BookingQueries) Get(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	scope, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	b, err := scope.Unit.Bookings().ByID(scope.Ctx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return nil, err
	}
	if !visible(q.Principal, b) {
		return nil, domainbooking.ErrBookingNotFound
	}
	listing, err := scope.Unit.Listings().ByID(scope.Ctx, b.ListingID)
	if err != nil {
		return nil, err
	}
	if h.roles().Resolve(scope.Ctx, q.Principal, b, listing) == domainbooking.RoleNone {
		return nil, &domainbooking.ForbiddenError{Action: "view", Actor: domainbooking.RoleNone, Allowed: domainbooking.RoleTenant | domainbooking.RoleOwner | domainbooking.RoleAdmin}
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// collect filters by visibility and orders newest first.
func collect(p policies.Principal, items []*domainbooking.Booking) *dto.BookingCollection {
	kept := make([]*domainbooking.Booking, 0, len(items))
	for _, b := range items {
		if visible(p, b) {
			kept = append(kept, b)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].CreatedAt.Equal(kept[j].CreatedAt) {
			return kept[i].ID > kept[j].ID
		}
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})
	out := dto.MapBookings(kept)
	return &out
}

// Register wires the query handlers onto bus.
func (h *BookingQueries) Register(bus *queries.InMemoryBus) {
	queries.RegisterHandler[ListUserBookingsQuery, *dto.BookingCollection](bus, ListUserBookingsKey, queries.HandlerFunc[ListUserBookingsQuery, *dto.BookingCollection](h.ListUser))
	queries.RegisterHandler[ListListingBookingsQuery, *dto.BookingCollection](bus, ListListingBookingsKey, queries.HandlerFunc[ListListingBookingsQuery, *dto.BookingCollection](h.ListListing))
	queries.RegisterHandler[ListOwnerBookingsQuery, *dto.BookingCollection](bus, ListOwnerBookingsKey, queries.HandlerFunc[ListOwnerBookingsQuery, *dto.BookingCollection](h.ListOwner))
	queries.RegisterHandler[GetBookingQuery, *dto.Booking](bus, GetBookingKey, queries.HandlerFunc[GetBookingQuery, *dto.Booking](h.Get))
}
