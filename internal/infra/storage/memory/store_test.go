package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/middleware"
	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
	infraoutbox "rentals/internal/infra/outbox"
)

var day0 = time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

func seeded(t *testing.T) (*Store, *Factory) {
	t.Helper()
	store := NewStore()
	store.SeedListing(&domainlistings.Listing{ID: "lst-1", Owner: "owner-1", NightlyRate: money.Must(10000, "USD")})
	return store, NewFactory(store, nil, 100*time.Millisecond)
}

func newPending(t *testing.T, id string, from, to int) *domainbooking.Booking {
	t.Helper()
	dr := daterange.MustNew(day0.AddDate(0, 0, from), day0.AddDate(0, 0, to))
	q, err := pricing.NightlyCalculator{}.Quote(money.Must(10000, "USD"), dr)
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(id),
		ListingID: "lst-1",
		UserID:    "tenant-1",
		Range:     dr,
		Quote:     q,
		CreatedAt: day0,
	})
	require.NoError(t, err)
	return b
}

func begin(t *testing.T, f *Factory) uow.UnitOfWork {
	t.Helper()
	unit, err := f.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return unit
}

func TestUnitReadsItsOwnWritesBeforeCommit(t *testing.T) {
	ctx := context.Background()
	_, f := seeded(t)
	unit := begin(t, f)

	b := newPending(t, "b1", 1, 4)
	require.NoError(t, unit.Bookings().Save(ctx, b))

	got, err := unit.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusPending, got.Status)

	other := begin(t, f)
	_, err = other.Bookings().ByID(ctx, "b1")
	require.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
	require.NoError(t, other.Rollback(ctx))

	require.NoError(t, unit.Commit(ctx))
	after := begin(t, f)
	got, err = after.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestStagedStatusChangeLeavesBlockingView(t *testing.T) {
	ctx := context.Background()
	store, f := seeded(t)
	b := newPending(t, "b1", 1, 4)
	b.Status = domainbooking.StatusConfirmed
	seed := begin(t, f)
	require.NoError(t, seed.Bookings().Save(ctx, b))
	require.NoError(t, seed.Commit(ctx))

	unit := begin(t, f)
	dr := daterange.MustNew(day0.AddDate(0, 0, 2), day0.AddDate(0, 0, 3))
	blocking, err := unit.Bookings().Blocking(ctx, "lst-1", dr, "")
	require.NoError(t, err)
	require.Len(t, blocking, 1)

	loaded, err := unit.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)
	loaded.Status = domainbooking.StatusCanceled
	require.NoError(t, unit.Bookings().Save(ctx, loaded))

	blocking, err = unit.Bookings().Blocking(ctx, "lst-1", dr, "")
	require.NoError(t, err)
	assert.Empty(t, blocking)
	require.NoError(t, unit.Rollback(ctx))

	committed, err := begin(t, f).Bookings().ByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, committed.Status)
	assert.Empty(t, store.OutboxRecords())
}

func TestCommitDetectsConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	_, f := seeded(t)
	seed := begin(t, f)
	require.NoError(t, seed.Bookings().Save(ctx, newPending(t, "b1", 1, 4)))
	require.NoError(t, seed.Commit(ctx))

	a, b := begin(t, f), begin(t, f)
	fromA, err := a.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)
	fromB, err := b.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)

	fromA.Status = domainbooking.StatusRequested
	require.NoError(t, a.Bookings().Save(ctx, fromA))
	fromB.Status = domainbooking.StatusCanceled
	require.NoError(t, b.Bookings().Save(ctx, fromB))

	require.NoError(t, a.Commit(ctx))
	require.ErrorIs(t, b.Commit(ctx), uow.ErrConflict)
}

func TestCommitDetectsDuplicateInsert(t *testing.T) {
	ctx := context.Background()
	_, f := seeded(t)
	a, b := begin(t, f), begin(t, f)
	require.NoError(t, a.Bookings().Save(ctx, newPending(t, "b1", 1, 4)))
	require.NoError(t, b.Bookings().Save(ctx, newPending(t, "b1", 5, 6)))
	require.NoError(t, a.Commit(ctx))
	require.ErrorIs(t, b.Commit(ctx), uow.ErrConflict)
}

func TestListingLockIsHeldUntilUnitEnds(t *testing.T) {
	ctx := context.Background()
	_, f := seeded(t)
	holder := begin(t, f)
	require.NoError(t, holder.LockListing(ctx, "lst-1"))
	require.NoError(t, holder.LockListing(ctx, "lst-1"))

	waiter := begin(t, f)
	require.ErrorIs(t, waiter.LockListing(ctx, "lst-1"), uow.ErrBusy)
	require.NoError(t, waiter.Rollback(ctx))

	require.NoError(t, holder.Commit(ctx))
	next := begin(t, f)
	require.NoError(t, next.LockListing(ctx, "lst-1"))
	require.NoError(t, next.Rollback(ctx))
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	ctx := context.Background()
	_, f := seeded(t)
	unit, err := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	require.ErrorIs(t, unit.Bookings().Save(ctx, newPending(t, "b1", 1, 2)), uow.ErrReadOnly)
	require.ErrorIs(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1"}), uow.ErrReadOnly)
}

func TestCommitRefusesCanceledContext(t *testing.T) {
	_, f := seeded(t)
	unit := begin(t, f)
	require.NoError(t, unit.Bookings().Save(context.Background(), newPending(t, "b1", 1, 4)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, unit.Commit(ctx), context.Canceled)

	_, err := begin(t, f).Bookings().ByID(context.Background(), "b1")
	require.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestOutboxClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	store, f := seeded(t)
	unit := begin(t, f)
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "booking.created", Aggregate: "b1"}))

	msg, err := store.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, msg, "uncommitted records are invisible")

	require.NoError(t, unit.Commit(ctx))
	msg, err = store.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "e1", msg.ID)

	again, err := store.Claim(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, store.MarkFailed(ctx, "e1", time.Now().Add(-time.Second), "broker down"))
	retry, err := store.Claim(ctx, "w2")
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, 1, retry.Attempts)

	require.NoError(t, store.MarkSent(ctx, "e1"))
	done, err := store.Claim(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Equal(t, infraoutbox.StateSent, store.entry("e1").state)
}

func TestIdempotencyStoreSweepsExpiredRecords(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore()
	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "old", ExpiresAt: day0.Add(time.Minute)}))
	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "forever"}))
	later := day0.Add(time.Hour)
	for i := 0; i < sweepEvery-2; i++ {
		require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", OccurredAt: later, ExpiresAt: later.Add(time.Hour)}))
	}
	_, found, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, s.Len())
}
