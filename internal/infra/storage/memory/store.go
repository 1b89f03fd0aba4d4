package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/infra/lock/local"
)

var ErrUnitFinished = errors.New("memory: unit of work already finished")

// Store is the committed state shared by every unit of work. Units stage
// their writes privately and apply them under the store lock at commit,
// checking that nothing they read-modified has moved in between.
type Store struct {
	mu       sync.RWMutex
	listings map[domainlistings.ListingID]*domainlistings.Listing
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	outbox   []*outboxEntry
}

func NewStore() *Store {
	return &Store{
		listings: make(map[domainlistings.ListingID]*domainlistings.Listing),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
	}
}

// SeedListing stores a listing outside any unit of work.
func (s *Store) SeedListing(l *domainlistings.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := l.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	s.listings[cp.ID] = cp
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Factory begins units of work over a Store.
type Factory struct {
	Store    *Store
	Locker   uow.ListingLocker
	LockWait time.Duration
}

func NewFactory(store *Store, locker uow.ListingLocker, lockWait time.Duration) *Factory {
	if store == nil {
		store = NewStore()
	}
	if locker == nil {
		locker = local.New()
	}
	return &Factory{Store: store, Locker: locker, LockWait: lockWait}
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Unit{
		store:    f.Store,
		locker:   f.Locker,
		lockWait: f.LockWait,
		readOnly: opts.ReadOnly,
		listings: make(map[domainlistings.ListingID]stagedListing),
		bookings: make(map[domainbooking.BookingID]stagedBooking),
		locked:   make(map[domainlistings.ListingID]bool),
	}, nil
}

type stagedListing struct {
	value *domainlistings.Listing
	base  int64
}

type stagedBooking struct {
	value *domainbooking.Booking
	base  int64
}

// Unit is a uow.UnitOfWork with read-your-writes over staged changes. It is
// meant for one goroutine.
type Unit struct {
	store    *Store
	locker   uow.ListingLocker
	lockWait time.Duration
	readOnly bool

	listings map[domainlistings.ListingID]stagedListing
	bookings map[domainbooking.BookingID]stagedBooking
	records  []outboxEntry
	locked   map[domainlistings.ListingID]bool
	releases []func()
	done     bool
}

func (u *Unit) Listings() domainlistings.Repository {
	return unitListings{u: u}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return unitBookings{u: u}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return unitOutbox{u: u}
}

func (u *Unit) LockListing(ctx context.Context, id domainlistings.ListingID) error {
	if u.done {
		return ErrUnitFinished
	}
	if u.locked[id] {
		return nil
	}
	release, err := uow.AcquireBounded(ctx, u.locker, string(id), u.lockWait)
	if err != nil {
		return err
	}
	u.locked[id] = true
	u.releases = append(u.releases, release)
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitFinished
	}
	defer u.finish()
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.readOnly {
		return nil
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range u.listings {
		if err := checkVersion(st.base, s.listings[id] != nil, versionOfListing(s.listings[id])); err != nil {
			return fmt.Errorf("%w: listing %s", err, id)
		}
	}
	for id, st := range u.bookings {
		if err := checkVersion(st.base, s.bookings[id] != nil, versionOfBooking(s.bookings[id])); err != nil {
			return fmt.Errorf("%w: booking %s", err, id)
		}
	}
	for id, st := range u.listings {
		s.listings[id] = st.value
	}
	for id, st := range u.bookings {
		s.bookings[id] = st.value
	}
	for i := range u.records {
		rec := u.records[i]
		s.outbox = append(s.outbox, &rec)
	}
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *Unit) finish() {
	u.done = true
	u.listings = nil
	u.bookings = nil
	u.records = nil
	for i := len(u.releases) - 1; i >= 0; i-- {
		u.releases[i]()
	}
	u.releases = nil
}

// checkVersion fails when the committed row is not the one the unit started
// from. base zero means the unit expects to insert.
func checkVersion(base int64, exists bool, current int64) error {
	if base == 0 {
		if exists {
			return uow.ErrConflict
		}
		return nil
	}
	if !exists || current != base {
		return uow.ErrConflict
	}
	return nil
}

func versionOfListing(l *domainlistings.Listing) int64 {
	if l == nil {
		return 0
	}
	return l.Version
}

func versionOfBooking(b *domainbooking.Booking) int64 {
	if b == nil {
		return 0
	}
	return b.Version
}

type unitListings struct{ u *Unit }

func (r unitListings) ByID(_ context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	if st, ok := r.u.listings[id]; ok {
		return st.value.Clone(), nil
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	l, ok := r.u.store.listings[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	return l.Clone(), nil
}

func (r unitListings) ByOwner(_ context.Context, owner domainlistings.OwnerID) ([]*domainlistings.Listing, error) {
	merged := make(map[domainlistings.ListingID]*domainlistings.Listing)
	r.u.store.mu.RLock()
	for id, l := range r.u.store.listings {
		merged[id] = l
	}
	r.u.store.mu.RUnlock()
	for id, st := range r.u.listings {
		merged[id] = st.value
	}
	out := make([]*domainlistings.Listing, 0)
	for _, l := range merged {
		if l.Owner == owner {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r unitListings) Save(_ context.Context, listing *domainlistings.Listing) error {
	if r.u.readOnly {
		return uow.ErrReadOnly
	}
	if r.u.done {
		return ErrUnitFinished
	}
	base := listing.Version
	if st, ok := r.u.listings[listing.ID]; ok {
		base = st.base
	}
	listing.Version = base + 1
	r.u.listings[listing.ID] = stagedListing{value: listing.Clone(), base: base}
	return nil
}

type unitBookings struct{ u *Unit }

func (r unitBookings) ByID(_ context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if st, ok := r.u.bookings[id]; ok {
		return st.value.Clone(), nil
	}
	r.u.store.mu.RLock()
	defer r.u.store.mu.RUnlock()
	b, ok := r.u.store.bookings[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r unitBookings) Save(_ context.Context, b *domainbooking.Booking) error {
	if r.u.readOnly {
		return uow.ErrReadOnly
	}
	if r.u.done {
		return ErrUnitFinished
	}
	base := b.Version
	if st, ok := r.u.bookings[b.ID]; ok {
		base = st.base
	}
	b.Version = base + 1
	r.u.bookings[b.ID] = stagedBooking{value: b.Clone(), base: base}
	return nil
}

// view returns the unit's picture of every booking matching keep.
func (r unitBookings) view(keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	merged := make(map[domainbooking.BookingID]*domainbooking.Booking)
	r.u.store.mu.RLock()
	for id, b := range r.u.store.bookings {
		if keep(b) {
			merged[id] = b
		}
	}
	r.u.store.mu.RUnlock()
	for id, st := range r.u.bookings {
		if keep(st.value) {
			merged[id] = st.value
		} else {
			delete(merged, id)
		}
	}
	out := make([]*domainbooking.Booking, 0, len(merged))
	for _, b := range merged {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Start.Equal(out[j].Range.Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.Start.Before(out[j].Range.Start)
	})
	return out
}

func (r unitBookings) Blocking(_ context.Context, listingID domainlistings.ListingID, dr daterange.DateRange, exclude domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	return r.view(func(b *domainbooking.Booking) bool {
		return b.ListingID == listingID && b.ID != exclude && b.Status.Blocking() && b.Range.Overlaps(dr)
	}), nil
}

func (r unitBookings) ListByUser(_ context.Context, userID string) ([]*domainbooking.Booking, error) {
	return r.view(func(b *domainbooking.Booking) bool { return b.UserID == userID }), nil
}

func (r unitBookings) ListByListing(_ context.Context, listingID domainlistings.ListingID) ([]*domainbooking.Booking, error) {
	return r.view(func(b *domainbooking.Booking) bool { return b.ListingID == listingID }), nil
}

var (
	_ uow.UoWFactory = (*Factory)(nil)
	_ uow.UnitOfWork = (*Unit)(nil)
)
