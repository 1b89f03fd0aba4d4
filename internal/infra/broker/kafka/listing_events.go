package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/IBM/sarama"

	"rentals/internal/app/commands"
	bookinghandlers "rentals/internal/app/handlers/booking"
	"rentals/internal/domain/shared/money"
	"rentals/internal/infra/inbox"
)

const (
	ListingRateChangedType = "listing.rate_changed.v1"
	ListingCreatedType     = "listing.created.v1"
)

type listingEnvelope struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data listingData `json:"data"`
}

type listingData struct {
	ListingID   string `json:"listing_id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	NightlyRate string `json:"nightly_rate"`
	Currency    string `json:"currency"`
}

// ListingEventsHandler keeps the listing read model and open booking prices
// in step with the listings service. Each event id is handled once.
type ListingEventsHandler struct {
	Bus    commands.Bus
	Inbox  inbox.Inbox
	Logger *slog.Logger
}

func (h *ListingEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env listingEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.logger().Warn("skipping malformed listing event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if env.Type != ListingRateChangedType && env.Type != ListingCreatedType {
		return nil
	}
	eventID := env.ID
	if eventID == "" {
		eventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	seen, err := h.Inbox.Seen(ctx, eventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	rate, err := money.Parse(env.Data.NightlyRate, env.Data.Currency)
	if err != nil {
		h.logger().Warn("skipping listing event with bad rate", "event_id", eventID, "error", err)
		return h.Inbox.Mark(ctx, eventID)
	}
	res, err := commands.Dispatch[bookinghandlers.RepriceListingBookingsCommand, *bookinghandlers.RepriceListingBookingsResult](ctx, h.Bus,
		bookinghandlers.RepriceListingBookingsCommand{
			ListingID:   env.Data.ListingID,
			NightlyRate: rate,
			OwnerID:     env.Data.OwnerID,
			Title:       env.Data.Title,
		})
	if err != nil {
		return err
	}
	h.logger().Info("listing event applied", "event_id", eventID, "listing_id", res.ListingID, "repriced", res.Repriced)
	return h.Inbox.Mark(ctx, eventID)
}

func (h *ListingEventsHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ MessageHandler = (*ListingEventsHandler)(nil)
