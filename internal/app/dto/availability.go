package dto

import "rentals/internal/domain/availability"

type Availability struct {
	ListingID string `json:"listing_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
}

type AvailableDates struct {
	ListingID string                    `json:"listing_id"`
	Months    []availability.MonthDates `json:"months"`
}
