package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) Handle(context.Context, *sarama.ConsumerMessage) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func TestDeliverRetriesUntilHandled(t *testing.T) {
	h := &flakyHandler{failures: 2}
	ch := claimHandler{handler: h, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), retryDelay: time.Millisecond}

	assert.True(t, ch.deliver(context.Background(), &sarama.ConsumerMessage{Topic: "t"}))
	assert.Equal(t, 3, h.calls)
}

func TestDeliverStopsWhenSessionEnds(t *testing.T) {
	h := &flakyHandler{failures: 1 << 30}
	ch := claimHandler{handler: h, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), retryDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, ch.deliver(ctx, &sarama.ConsumerMessage{Topic: "t"}))
	assert.Equal(t, 1, h.calls)
}
