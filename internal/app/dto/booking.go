package dto

import (
	"time"

	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/shared/money"
)

const DateLayout = time.DateOnly

type MoneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Decimal(), Currency: value.Currency}
}

type Booking struct {
	ID              string     `json:"id"`
	ListingID       string     `json:"listing_id"`
	UserID          string     `json:"user_id"`
	StartDate       string     `json:"start_date"`
	EndDate         string     `json:"end_date"`
	Nights          int        `json:"nights"`
	Status          string     `json:"status"`
	NightlyRate     MoneyDTO   `json:"nightly_rate"`
	TotalPrice      MoneyDTO   `json:"total_price"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:          string(b.ID),
		ListingID:   string(b.ListingID),
		UserID:      b.UserID,
		StartDate:   b.Range.Start.Format(DateLayout),
		EndDate:     b.Range.End.Format(DateLayout),
		Nights:      b.Range.Nights(),
		Status:      string(b.Status),
		NightlyRate: MapMoney(b.NightlyRate),
		TotalPrice:  MapMoney(b.TotalPrice),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if !b.StatusChangedAt.IsZero() {
		changed := b.StatusChangedAt
		out.StatusChangedAt = &changed
	}
	return out
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}
