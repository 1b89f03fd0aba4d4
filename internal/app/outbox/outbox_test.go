package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain/shared/events"
)

type sliceBox struct{ records []EventRecord }

func (b *sliceBox) Add(_ context.Context, rec EventRecord) error {
	b.records = append(b.records, rec)
	return nil
}

type noted struct {
	ID string
	At time.Time
}

func (n noted) EventName() string     { return "booking.noted" }
func (n noted) AggregateID() string   { return n.ID }
func (n noted) OccurredAt() time.Time { return n.At }

type unencodable struct{ noted }

func (unencodable) MarshalJSON() ([]byte, error) { return nil, errors.New("nope") }

func TestRecordDomainEventsStampsCorrelation(t *testing.T) {
	box := &sliceBox{}
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	ctx := ContextWithCorrelationID(context.Background(), "req-42")

	err := RecordDomainEvents(ctx, box, JSONEventEncoder{IDGenerator: func() string { return "evt-1" }}, []events.DomainEvent{
		noted{ID: "b1", At: at},
	})
	require.NoError(t, err)
	require.Len(t, box.records, 1)
	rec := box.records[0]
	assert.Equal(t, "evt-1", rec.ID)
	assert.Equal(t, "booking.noted", rec.Name)
	assert.Equal(t, "b1", rec.Aggregate)
	assert.Equal(t, time.UTC, rec.OccurredAt.Location())
	assert.Equal(t, "req-42", rec.Headers[HeaderCorrelationID])
	assert.JSONEq(t, `{"ID":"b1","At":"2026-03-01T12:00:00+01:00"}`, string(rec.Payload))
}

func TestRecordDomainEventsWritesNothingOnEncodeFailure(t *testing.T) {
	box := &sliceBox{}
	err := RecordDomainEvents(context.Background(), box, nil, []events.DomainEvent{
		noted{ID: "b1"},
		unencodable{noted{ID: "b1"}},
	})
	require.Error(t, err)
	assert.Empty(t, box.records)
	assert.Empty(t, CorrelationID(context.Background()))
}
