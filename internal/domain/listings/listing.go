package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentals/internal/domain/shared/events"
	"rentals/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errors.New("listings: not found")
	ErrOwnerRequired   = errors.New("listings: owner is required")
	ErrNightlyRate     = errors.New("listings: nightly rate must be positive")
)

type ListingID string
type OwnerID string

// Listing is the booking core's read model of a listing owned by the
// listings service: who owns it and what a night costs.
type Listing struct {
	ID          ListingID
	Owner       OwnerID
	Title       string
	NightlyRate money.Money
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	ByOwner(ctx context.Context, owner OwnerID) ([]*Listing, error)
	Save(ctx context.Context, listing *Listing) error
}

type CreateListingParams struct {
	ID          ListingID
	Owner       OwnerID
	Title       string
	NightlyRate money.Money
	Now         time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Owner)) == "" {
		return nil, ErrOwnerRequired
	}
	if params.NightlyRate.Amount <= 0 || params.NightlyRate.Currency == "" {
		return nil, ErrNightlyRate
	}
	now := params.Now.UTC()
	return &Listing{
		ID:          params.ID,
		Owner:       params.Owner,
		Title:       strings.TrimSpace(params.Title),
		NightlyRate: params.NightlyRate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ChangeRate applies a new nightly rate. It reports false when the rate is
// already in effect.
func (l *Listing) ChangeRate(rate money.Money, now time.Time) (bool, error) {
	if rate.Amount <= 0 || rate.Currency == "" {
		return false, ErrNightlyRate
	}
	if l.NightlyRate.Equal(rate) {
		return false, nil
	}
	previous := l.NightlyRate
	l.NightlyRate = rate
	l.UpdatedAt = now.UTC()
	l.Record(ListingRateChanged{ListingID: l.ID, Previous: previous, Rate: rate, At: l.UpdatedAt})
	return true, nil
}

// OwnedBy reports whether user owns the listing.
func (l *Listing) OwnedBy(user string) bool {
	return user != "" && string(l.Owner) == user
}

// Clone returns a detached copy without pending events.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	cp := *l
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}
