package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo session transactions into the UnitOfWork interface.
// Listing locks come from Locker when set; the transaction also bumps the
// listing document so two writers of one listing can never both commit.
type Factory struct {
	DB       *mongo.Database
	Outbox   appoutbox.Outbox
	Locker   uow.ListingLocker
	LockWait time.Duration
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:       f.DB,
		session:  session,
		readOnly: opts.ReadOnly,
		listings: NewListingRepository(f.DB),
		bookings: NewBookingRepository(f.DB),
		outbox:   f.Outbox,
		locker:   f.Locker,
		lockWait: f.LockWait,
		locked:   make(map[domainlistings.ListingID]bool),
	}, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool

	listings *ListingRepository
	bookings *BookingRepository
	outbox   appoutbox.Outbox

	locker   uow.ListingLocker
	lockWait time.Duration
	locked   map[domainlistings.ListingID]bool
	releases []func()
	done     bool
}

func (u *Unit) Listings() domainlistings.Repository {
	return u.listings
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) Outbox() appoutbox.Outbox {
	if u.outbox == nil {
		return discardOutbox{}
	}
	return u.outbox
}

func (u *Unit) LockListing(ctx context.Context, id domainlistings.ListingID) error {
	if u.locked[id] {
		return nil
	}
	if u.locker != nil {
		release, err := uow.AcquireBounded(ctx, u.locker, string(id), u.lockWait)
		if err != nil {
			return err
		}
		u.releases = append(u.releases, release)
	}
	u.locked[id] = true
	if u.readOnly {
		return nil
	}
	_, err := u.db.Collection(listingsCollection).UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$inc": bson.M{"lock_seq": 1}},
	)
	return mapError(err)
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	defer u.finish(ctx)
	if err := ctx.Err(); err != nil {
		_ = u.session.AbortTransaction(context.WithoutCancel(ctx))
		return err
	}
	return commitWithRetry(ctx, u.session.CommitTransaction)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	defer u.finish(ctx)
	return u.session.AbortTransaction(ctx)
}

func (u *Unit) finish(ctx context.Context) {
	u.done = true
	u.session.EndSession(context.WithoutCancel(ctx))
	for i := len(u.releases) - 1; i >= 0; i-- {
		u.releases[i]()
	}
	u.releases = nil
}

// InjectContext binds the session to ctx so repositories join the transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

type discardOutbox struct{}

func (discardOutbox) Add(context.Context, appoutbox.EventRecord) error { return nil }

var (
	_ uow.UoWFactory = (*Factory)(nil)
	_ uow.UnitOfWork = (*Unit)(nil)
)
