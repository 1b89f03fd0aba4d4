package booking

import (
	"context"
	"errors"
	"time"

	"rentals/internal/domain/listings"
	"rentals/internal/domain/pricing"
	"rentals/internal/domain/shared/daterange"
	"rentals/internal/domain/shared/events"
	"rentals/internal/domain/shared/money"
)

type BookingID string

type Booking struct {
	ID          BookingID
	ListingID   listings.ListingID
	UserID      string
	Range       daterange.DateRange
	Status      Status
	NightlyRate money.Money
	TotalPrice  money.Money
	// StatusChangedAt stays zero until the first status change.
	StatusChangedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

// BlockingQuery finds the REQUESTED/CONFIRMED bookings of a listing that
// overlap dr, leaving out exclude when it is set.
type BlockingQuery interface {
	Blocking(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange, exclude BookingID) ([]*Booking, error)
}

type Repository interface {
	BlockingQuery
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	ListByUser(ctx context.Context, userID string) ([]*Booking, error)
	ListByListing(ctx context.Context, listingID listings.ListingID) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	ListingID listings.ListingID
	UserID    string
	Range     daterange.DateRange
	Quote     pricing.Quote
	CreatedAt time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.ID == "" {
		return nil, errors.New("booking: id required")
	}
	if params.ListingID == "" {
		return nil, errors.New("booking: listing id required")
	}
	if params.UserID == "" {
		return nil, errors.New("booking: user id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, ErrInvalidRange
	}
	if params.Quote.Total.Currency == "" {
		return nil, errors.New("booking: price required")
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:          params.ID,
		ListingID:   params.ListingID,
		UserID:      params.UserID,
		Range:       params.Range,
		Status:      StatusPending,
		NightlyRate: params.Quote.Nightly,
		TotalPrice:  params.Quote.Total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.Record(BookingCreated{BookingID: b.ID, ListingID: b.ListingID, UserID: b.UserID, Range: b.Range, Total: b.TotalPrice, At: now})
	return b, nil
}

// Apply runs a lifecycle action. status_changed_at moves only because Decide
// never returns the current status.
func (b *Booking) Apply(req TransitionRequest, now time.Time) (Status, error) {
	from := b.Status
	to, err := Decide(from, req)
	if err != nil {
		return from, err
	}
	now = now.UTC()
	b.Status = to
	b.StatusChangedAt = now
	b.UpdatedAt = now
	b.Record(BookingStatusChanged{BookingID: b.ID, ListingID: b.ListingID, Action: req.Action, From: from, To: to, At: now})
	return from, nil
}

// Reschedule moves the stay to dr priced by q.
func (b *Booking) Reschedule(dr daterange.DateRange, q pricing.Quote, now time.Time) error {
	if b.Status == StatusDeleted {
		return ErrCannotModifyDeleted
	}
	if err := dr.Validate(); err != nil {
		return ErrInvalidRange
	}
	now = now.UTC()
	if !b.Range.Equal(dr) {
		previous := b.Range
		b.Range = dr
		b.UpdatedAt = now
		b.Record(BookingDatesChanged{BookingID: b.ID, ListingID: b.ListingID, Previous: previous, Range: dr, At: now})
	}
	b.applyQuote(q, now)
	return nil
}

// Reprice applies a fresh quote for the current range. Finished bookings keep
// the price they ended with.
func (b *Booking) Reprice(q pricing.Quote, now time.Time) bool {
	if b.Status.Terminal() {
		return false
	}
	return b.applyQuote(q, now.UTC())
}

func (b *Booking) applyQuote(q pricing.Quote, now time.Time) bool {
	if b.NightlyRate.Equal(q.Nightly) && b.TotalPrice.Equal(q.Total) {
		return false
	}
	previous := b.TotalPrice
	b.NightlyRate = q.Nightly
	b.TotalPrice = q.Total
	b.UpdatedAt = now
	b.Record(BookingRepriced{BookingID: b.ID, NightlyRate: q.Nightly, Previous: previous, Total: q.Total, At: now})
	return true
}

// Clone returns a detached copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}
