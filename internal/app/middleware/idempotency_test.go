package middleware_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/commands"
	"rentals/internal/app/middleware"
	"rentals/internal/app/policies"
	"rentals/internal/domain/shared/clock"
)

type mapStore struct {
	mu   sync.Mutex
	recs map[string]middleware.IdempotencyRecord
}

func (s *mapStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recs == nil {
		s.recs = make(map[string]middleware.IdempotencyRecord)
	}
	s.recs[rec.Key] = rec
	return nil
}

type result struct {
	N int `json:"n"`
}

type countCommand struct {
	key  string
	name string
}

func (c countCommand) Key() string {
	if c.name != "" {
		return c.name
	}
	return "test.count"
}
func (c countCommand) IdempotencyKey() string { return c.key }
func (c countCommand) ResultPrototype() any   { return &result{} }

type countingBus struct {
	n    int
	fail error
}

func (b *countingBus) Dispatch(context.Context, commands.Command) (any, error) {
	if b.fail != nil {
		err := b.fail
		b.fail = nil
		return nil, err
	}
	b.n++
	return &result{N: b.n}, nil
}

func TestIdempotencyReplaysFirstResult(t *testing.T) {
	bus := &countingBus{}
	wrapped := middleware.ChainCommands(bus, middleware.Idempotency(&mapStore{}, middleware.IdempotencyOptions{}))

	first, err := commands.Dispatch[countCommand, *result](context.Background(), wrapped, countCommand{key: "k1"})
	require.NoError(t, err)
	second, err := commands.Dispatch[countCommand, *result](context.Background(), wrapped, countCommand{key: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, bus.n)

	third, err := commands.Dispatch[countCommand, *result](context.Background(), wrapped, countCommand{})
	require.NoError(t, err)
	assert.Equal(t, 2, third.N)
}

func TestIdempotencyDoesNotRecordFailures(t *testing.T) {
	boom := errors.New("boom")
	bus := &countingBus{fail: boom}
	wrapped := middleware.ChainCommands(bus, middleware.Idempotency(&mapStore{}, middleware.IdempotencyOptions{}))

	_, err := wrapped.Dispatch(context.Background(), countCommand{key: "k1"})
	require.ErrorIs(t, err, boom)

	res, err := commands.Dispatch[countCommand, *result](context.Background(), wrapped, countCommand{key: "k1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.N)
}

func TestIdempotencyRecordsExpire(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	bus := &countingBus{}
	wrapped := middleware.ChainCommands(bus, middleware.Idempotency(&mapStore{}, middleware.IdempotencyOptions{TTL: time.Hour, Clock: clk}))

	_, err := wrapped.Dispatch(context.Background(), countCommand{key: "k1"})
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)
	res, err := commands.Dispatch[countCommand, *result](context.Background(), wrapped, countCommand{key: "k1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.N)
}

func TestIdempotencyRejectsKeyReuseAcrossCommands(t *testing.T) {
	bus := &countingBus{}
	wrapped := middleware.ChainCommands(bus, middleware.Idempotency(&mapStore{}, middleware.IdempotencyOptions{}))

	_, err := wrapped.Dispatch(context.Background(), countCommand{key: "k1"})
	require.NoError(t, err)
	_, err = wrapped.Dispatch(context.Background(), countCommand{key: "k1", name: "test.other"})
	require.ErrorIs(t, err, middleware.ErrIdempotencyKeyReused)
}

type userCountCommand struct {
	countCommand
	user string
}

func (c userCountCommand) PrincipalOf() policies.Principal { return policies.Principal{UserID: c.user} }

func TestIdempotencyKeysAreScopedToCaller(t *testing.T) {
	bus := &countingBus{}
	wrapped := middleware.ChainCommands(bus, middleware.Idempotency(&mapStore{}, middleware.IdempotencyOptions{}))

	a, err := commands.Dispatch[userCountCommand, *result](context.Background(), wrapped, userCountCommand{countCommand{key: "k1"}, "u1"})
	require.NoError(t, err)
	b, err := commands.Dispatch[userCountCommand, *result](context.Background(), wrapped, userCountCommand{countCommand{key: "k1"}, "u2"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.N)
	assert.Equal(t, 2, b.N)
}

type gatedBus struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *gatedBus) Dispatch(ctx context.Context, _ commands.Command) (any, error) {
	n := b.calls.Add(1)
	if n == 1 {
		close(b.entered)
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &result{N: int(n)}, nil
}

func TestIdempotencyRunsConcurrentDuplicatesOnce(t *testing.T) {
	bus := &gatedBus{entered: make(chan struct{}), release: make(chan struct{})}
	wrapped := middleware.ChainCommands(bus, middleware.Idempotency(&mapStore{}, middleware.IdempotencyOptions{}))

	results := make(chan *result, 2)
	dispatch := func() {
		res, err := commands.Dispatch[countCommand, *result](context.Background(), wrapped, countCommand{key: "k1"})
		assert.NoError(t, err)
		results <- res
	}
	go dispatch()
	<-bus.entered
	go dispatch()
	time.Sleep(10 * time.Millisecond)
	close(bus.release)

	first, second := <-results, <-results
	assert.Equal(t, int32(1), bus.calls.Load())
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

func TestIdempotencyDuplicateOutlivesCanceledLeader(t *testing.T) {
	bus := &gatedBus{entered: make(chan struct{}), release: make(chan struct{})}
	wrapped := middleware.ChainCommands(bus, middleware.Idempotency(&mapStore{}, middleware.IdempotencyOptions{}))

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := wrapped.Dispatch(leaderCtx, countCommand{key: "k1"})
		leaderErr <- err
	}()
	<-bus.entered

	type outcome struct {
		res *result
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := commands.Dispatch[countCommand, *result](context.Background(), wrapped, countCommand{key: "k1"})
		follower <- outcome{res, err}
	}()
	time.Sleep(10 * time.Millisecond)

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(bus.release)

	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, 2, got.res.N)
	assert.Equal(t, int32(2), bus.calls.Load())

	replay, err := commands.Dispatch[countCommand, *result](context.Background(), wrapped, countCommand{key: "k1"})
	require.NoError(t, err)
	assert.Equal(t, 2, replay.N)
}
