package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainrange "rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/money"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type ListingRepository struct {
	q querier
}

const listingColumns = `id, owner_id, title, rate_amount, rate_currency, created_at, updated_at, version`

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, string(id))
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainlistings.ErrListingNotFound
	}
	return l, mapError(err)
}

func (r *ListingRepository) ByOwner(ctx context.Context, owner domainlistings.OwnerID) ([]*domainlistings.Listing, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE owner_id = $1 ORDER BY id`, string(owner))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []*domainlistings.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, mapError(rows.Err())
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	next := l.Version + 1
	var (
		res sql.Result
		err error
	)
	if l.Version == 0 {
		res, err = r.q.ExecContext(ctx, `INSERT INTO listings (`+listingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
			string(l.ID), string(l.Owner), l.Title, l.NightlyRate.Amount, l.NightlyRate.Currency,
			l.CreatedAt, l.UpdatedAt, next)
	} else {
		res, err = r.q.ExecContext(ctx, `UPDATE listings SET owner_id = $2, title = $3, rate_amount = $4,
			rate_currency = $5, updated_at = $6, version = $7 WHERE id = $1 AND version = $8`,
			string(l.ID), string(l.Owner), l.Title, l.NightlyRate.Amount, l.NightlyRate.Currency,
			l.UpdatedAt, next, l.Version)
	}
	if err := affectedOne(res, err); err != nil {
		return err
	}
	l.Version = next
	return nil
}

func scanListing(row scanner) (*domainlistings.Listing, error) {
	var (
		l        domainlistings.Listing
		id, own  string
		amount   int64
		currency string
	)
	if err := row.Scan(&id, &own, &l.Title, &amount, &currency, &l.CreatedAt, &l.UpdatedAt, &l.Version); err != nil {
		return nil, err
	}
	l.ID = domainlistings.ListingID(id)
	l.Owner = domainlistings.OwnerID(own)
	l.NightlyRate = money.Money{Amount: amount, Currency: currency}
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

type BookingRepository struct {
	q querier
}

const bookingColumns = `id, listing_id, user_id, start_date, end_date, status, rate_amount, rate_currency,
	total_amount, total_currency, status_changed_at, created_at, updated_at, version`

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b, mapError(err)
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	next := b.Version + 1
	var changedAt any
	if !b.StatusChangedAt.IsZero() {
		changedAt = b.StatusChangedAt
	}
	var (
		res sql.Result
		err error
	)
	if b.Version == 0 {
		res, err = r.q.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) ON CONFLICT (id) DO NOTHING`,
			string(b.ID), string(b.ListingID), b.UserID, b.Range.Start, b.Range.End, string(b.Status),
			b.NightlyRate.Amount, b.NightlyRate.Currency, b.TotalPrice.Amount, b.TotalPrice.Currency,
			changedAt, b.CreatedAt, b.UpdatedAt, next)
	} else {
		res, err = r.q.ExecContext(ctx, `UPDATE bookings SET start_date = $2, end_date = $3, status = $4,
			rate_amount = $5, rate_currency = $6, total_amount = $7, total_currency = $8,
			status_changed_at = $9, updated_at = $10, version = $11
			WHERE id = $1 AND version = $12`,
			string(b.ID), b.Range.Start, b.Range.End, string(b.Status),
			b.NightlyRate.Amount, b.NightlyRate.Currency, b.TotalPrice.Amount, b.TotalPrice.Currency,
			changedAt, b.UpdatedAt, next, b.Version)
	}
	if err := affectedOne(res, err); err != nil {
		return err
	}
	b.Version = next
	return nil
}

func (r *BookingRepository) Blocking(ctx context.Context, listingID domainlistings.ListingID, dr domainrange.DateRange, exclude domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE listing_id = $1 AND status = ANY($2) AND start_date < $3 AND end_date > $4 AND id <> $5
		ORDER BY start_date, id`,
		string(listingID), pq.Array(statusStrings(domainbooking.BlockingStatuses)), dr.End, dr.Start, string(exclude))
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID domainlistings.ListingID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE listing_id = $1 ORDER BY start_date, id`, string(listingID))
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domainbooking.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []*domainbooking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, mapError(rows.Err())
}

func scanBooking(row scanner) (*domainbooking.Booking, error) {
	var (
		b                       domainbooking.Booking
		id, listingID, status   string
		start, end              time.Time
		rateAmount, totalAmount int64
		rateCur, totalCur       string
		changedAt               sql.NullTime
	)
	err := row.Scan(&id, &listingID, &b.UserID, &start, &end, &status, &rateAmount, &rateCur,
		&totalAmount, &totalCur, &changedAt, &b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		return nil, err
	}
	b.ID = domainbooking.BookingID(id)
	b.ListingID = domainlistings.ListingID(listingID)
	b.Range = domainrange.DateRange{Start: domainrange.Day(start), End: domainrange.Day(end)}
	b.Status = domainbooking.Status(status)
	b.NightlyRate = money.Money{Amount: rateAmount, Currency: rateCur}
	b.TotalPrice = money.Money{Amount: totalAmount, Currency: totalCur}
	if changedAt.Valid {
		b.StatusChangedAt = changedAt.Time.UTC()
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func statusStrings(statuses []domainbooking.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// affectedOne treats a write that touched no row as a lost optimistic race.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

var (
	_ domainlistings.Repository = (*ListingRepository)(nil)
	_ domainbooking.Repository  = (*BookingRepository)(nil)
)
