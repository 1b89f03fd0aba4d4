package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/commands"
	bookinghandlers "rentals/internal/app/handlers/booking"
	"rentals/internal/domain/shared/money"
	"rentals/internal/infra/inbox"
)

type recordingBus struct {
	got  []bookinghandlers.RepriceListingBookingsCommand
	fail error
}

func (b *recordingBus) Dispatch(_ context.Context, cmd commands.Command) (any, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	c := cmd.(bookinghandlers.RepriceListingBookingsCommand)
	b.got = append(b.got, c)
	return &bookinghandlers.RepriceListingBookingsResult{ListingID: c.ListingID, Repriced: 1}, nil
}

func listingMessage(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "listing.events.v1", Partition: 0, Offset: 7, Value: []byte(value)}
}

const rateChanged = `{"id":"evt-1","type":"listing.rate_changed.v1","data":{"listing_id":"lst-1","owner_id":"owner-1","title":"Loft","nightly_rate":"120.50","currency":"usd"}}`

func TestListingEventsDispatchReprice(t *testing.T) {
	bus := &recordingBus{}
	h := &ListingEventsHandler{Bus: bus, Inbox: inbox.NewMemoryStore()}

	require.NoError(t, h.Handle(context.Background(), listingMessage(rateChanged)))
	require.Len(t, bus.got, 1)
	assert.Equal(t, "lst-1", bus.got[0].ListingID)
	assert.Equal(t, "owner-1", bus.got[0].OwnerID)
	assert.Equal(t, "Loft", bus.got[0].Title)
	assert.Equal(t, money.Must(12050, "USD"), bus.got[0].NightlyRate)
}

func TestListingEventsHandledOnce(t *testing.T) {
	bus := &recordingBus{}
	h := &ListingEventsHandler{Bus: bus, Inbox: inbox.NewMemoryStore()}

	require.NoError(t, h.Handle(context.Background(), listingMessage(rateChanged)))
	require.NoError(t, h.Handle(context.Background(), listingMessage(rateChanged)))
	assert.Len(t, bus.got, 1)
}

func TestListingEventsSkipsUnusableMessages(t *testing.T) {
	bus := &recordingBus{}
	store := inbox.NewMemoryStore()
	h := &ListingEventsHandler{Bus: bus, Inbox: store}
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, listingMessage(`{not json`)))
	require.NoError(t, h.Handle(ctx, listingMessage(`{"id":"evt-2","type":"listing.photo_added.v1","data":{}}`)))
	require.NoError(t, h.Handle(ctx, listingMessage(`{"id":"evt-3","type":"listing.created.v1","data":{"listing_id":"lst-2","nightly_rate":"abc","currency":"USD"}}`)))
	assert.Empty(t, bus.got)

	seen, err := store.Seen(ctx, "evt-3")
	require.NoError(t, err)
	assert.True(t, seen, "bad rates are not redelivered")
	seen, err = store.Seen(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestListingEventsLeavesFailedDispatchUnmarked(t *testing.T) {
	boom := errors.New("db down")
	bus := &recordingBus{fail: boom}
	store := inbox.NewMemoryStore()
	h := &ListingEventsHandler{Bus: bus, Inbox: store}

	require.ErrorIs(t, h.Handle(context.Background(), listingMessage(rateChanged)), boom)
	seen, err := store.Seen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestListingEventsFallsBackToOffsetID(t *testing.T) {
	bus := &recordingBus{}
	store := inbox.NewMemoryStore()
	h := &ListingEventsHandler{Bus: bus, Inbox: store}

	msg := listingMessage(`{"type":"listing.created.v1","data":{"listing_id":"lst-9","nightly_rate":"80","currency":"EUR"}}`)
	require.NoError(t, h.Handle(context.Background(), msg))
	seen, err := store.Seen(context.Background(), "listing.events.v1/0/7")
	require.NoError(t, err)
	assert.True(t, seen)
	require.Len(t, bus.got, 1)
	assert.Equal(t, money.Must(8000, "EUR"), bus.got[0].NightlyRate)
}
