package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"rentals/internal/app/commands"
	bookingapp "rentals/internal/app/handlers/booking"
	"rentals/internal/domain/shared/money"
)

type listingFixture struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	NightlyRate string `json:"nightly_rate"`
	Currency    string `json:"currency"`
}

// loadListingFixtures registers listings through the same command the
// listings event consumer uses, so every storage driver can be seeded.
func loadListingFixtures(ctx context.Context, path string, bus commands.Bus, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("listing fixtures file empty", "path", path)
		return nil
	}

	var fixtures []listingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		rate, err := money.Parse(fx.NightlyRate, fx.Currency)
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		cmd := bookingapp.RepriceListingBookingsCommand{
			ListingID:   fx.ID,
			NightlyRate: rate,
			OwnerID:     fx.OwnerID,
			Title:       fx.Title,
		}
		if _, err := commands.Dispatch[bookingapp.RepriceListingBookingsCommand, *bookingapp.RepriceListingBookingsResult](ctx, bus, cmd); err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		logger.Info("listing fixture imported", "listing_id", fx.ID)
	}
	return nil
}
