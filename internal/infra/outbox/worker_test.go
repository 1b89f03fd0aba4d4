package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	infraoutbox "rentals/internal/infra/outbox"
	"rentals/internal/infra/storage/memory"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	return m.Called(ctx, topic, key, payload, headers).Error(0)
}

func commitRecords(t *testing.T, store *memory.Store, records ...appoutbox.EventRecord) {
	t.Helper()
	ctx := context.Background()
	unit, err := memory.NewFactory(store, nil, 0).Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, unit.Outbox().Add(ctx, rec))
	}
	require.NoError(t, unit.Commit(ctx))
}

func TestWorkerPublishesCloudEvents(t *testing.T) {
	store := memory.NewStore()
	occurred := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	commitRecords(t, store, appoutbox.EventRecord{
		ID:         "evt-1",
		Name:       "booking.created",
		Payload:    []byte(`{"BookingID":"b1"}`),
		OccurredAt: occurred,
		Aggregate:  "b1",
	})

	producer := new(MockProducer)
	var sent []byte
	producer.On("Publish", mock.Anything, "dev.booking.events.v1", "b1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(3).([]byte) }).
		Return(nil).Once()

	w := infraoutbox.NewWorker(store, producer)
	w.TopicPrefix = "dev."
	w.Source = "rentals"
	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	producer.AssertExpectations(t)

	var evt map[string]any
	require.NoError(t, json.Unmarshal(sent, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "evt-1", evt["id"])
	assert.Equal(t, "booking.created.v1", evt["type"])
	assert.Equal(t, "rentals", evt["source"])
	assert.Equal(t, "b1", evt["subject"])
	assert.Equal(t, map[string]any{"BookingID": "b1"}, evt["data"])

	n, err = w.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerReschedulesFailedPublish(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store,
		appoutbox.EventRecord{ID: "evt-1", Name: "booking.created", Payload: []byte(`{}`), Aggregate: "b1"},
		appoutbox.EventRecord{ID: "evt-2", Name: "booking.status_changed", Payload: []byte(`{}`), Aggregate: "b1"},
	)

	producer := new(MockProducer)
	producer.On("Publish", mock.Anything, "booking.events.v1", "b1", mock.Anything, mock.MatchedBy(func(h map[string]string) bool {
		return h["ce-id"] == "evt-1"
	})).Return(errors.New("broker down")).Once()
	producer.On("Publish", mock.Anything, "booking.events.v1", "b1", mock.Anything, mock.MatchedBy(func(h map[string]string) bool {
		return h["ce-id"] == "evt-2"
	})).Return(nil).Once()

	w := infraoutbox.NewWorker(store, producer)
	w.Backoff = []time.Duration{time.Hour}
	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	producer.AssertExpectations(t)

	// evt-1 waits for its backoff.
	msg, err := store.Claim(context.Background(), "probe")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestWorkerRunDrainsOnNotify(t *testing.T) {
	store := memory.NewStore()
	producer := new(MockProducer)
	published := make(chan struct{}, 1)
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { published <- struct{}{} }).
		Return(nil)

	w := infraoutbox.NewWorker(store, producer)
	w.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	commitRecords(t, store, appoutbox.EventRecord{ID: "evt-1", Name: "booking.created", Payload: []byte(`{}`), Aggregate: "b1"})
	w.Notify()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not publish after notify")
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWorkerRequiresDependencies(t *testing.T) {
	w := infraoutbox.NewWorker(nil, nil)
	require.ErrorIs(t, w.Run(context.Background()), infraoutbox.ErrWorkerNotConfigured)
}
