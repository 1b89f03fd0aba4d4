package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

// Factory runs each unit of work in one READ COMMITTED transaction. Listing
// locks are transaction-scoped advisory locks, so they vanish with the
// transaction no matter how it ends.
type Factory struct {
	DB       *sql.DB
	LockWait time.Duration
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, mapError(err)
	}
	return &Unit{tx: tx, lockWait: f.LockWait, locked: make(map[domainlistings.ListingID]bool)}, nil
}

type Unit struct {
	tx       *sql.Tx
	lockWait time.Duration
	locked   map[domainlistings.ListingID]bool
}

func (u *Unit) Listings() domainlistings.Repository {
	return &ListingRepository{q: u.tx}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return &BookingRepository{q: u.tx}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return &txOutbox{q: u.tx}
}

func (u *Unit) LockListing(ctx context.Context, id domainlistings.ListingID) error {
	if u.locked[id] {
		return nil
	}
	if err := lockListing(ctx, u.tx, string(id), u.lockWait); err != nil {
		return err
	}
	u.locked[id] = true
	return nil
}

// lockListing takes the advisory lock for key. The wait bound applies to
// the advisory lock only; later row locks in the transaction wait as usual.
func lockListing(ctx context.Context, q querier, key string, wait time.Duration) error {
	if wait > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", wait.Milliseconds())
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return mapError(err)
		}
	}
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return mapError(err)
	}
	if wait > 0 {
		if _, err := q.ExecContext(ctx, "SET LOCAL lock_timeout = 0"); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		_ = u.tx.Rollback()
		return err
	}
	return mapError(u.tx.Commit())
}

func (u *Unit) Rollback(context.Context) error {
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

var (
	_ uow.UoWFactory = (*Factory)(nil)
	_ uow.UnitOfWork = (*Unit)(nil)
)
