package uow

import (
	"context"
	"errors"

	"rentals/internal/app/outbox"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
)

var (
	// ErrConflict reports a concurrent write detected at commit time; the
	// whole unit of work can be retried.
	ErrConflict = errors.New("uow: concurrent modification detected")
	// ErrBusy reports that the listing lock could not be taken in time.
	ErrBusy = errors.New("uow: listing is busy")
	// ErrReadOnly is returned when a read-only unit is asked to write.
	ErrReadOnly = errors.New("uow: read-only unit of work")
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.Repository
	Bookings() domainbooking.Repository
	Outbox() outbox.Outbox

	// LockListing serializes writers of one listing until Commit or Rollback.
	// It waits a bounded time and fails with ErrBusy.
	LockListing(ctx context.Context, id domainlistings.ListingID) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ListingLocker hands out exclusive per-key locks shared by all units of work
// of one backend. Acquire blocks until the lock is free or ctx is done.
type ListingLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Retryable reports whether err is worth running the unit of work again.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
