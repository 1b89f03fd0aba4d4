package local

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"rentals/internal/app/uow"
)

func TestLockerExcludesSameKey(t *testing.T) {
	l := New()
	var inside, peak int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			release, err := l.Acquire(context.Background(), "listing-1")
			if err != nil {
				return err
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), peak)
	assert.Empty(t, l.locks)
}

func TestLockerKeysAreIndependent(t *testing.T) {
	l := New()
	releaseA, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestAcquireBoundedReportsBusy(t *testing.T) {
	l := New()
	release, err := l.Acquire(context.Background(), "listing-1")
	require.NoError(t, err)
	defer release()

	_, err = uow.AcquireBounded(context.Background(), l, "listing-1", 20*time.Millisecond)
	assert.ErrorIs(t, err, uow.ErrBusy)
}

func TestAcquireBoundedReturnsCallerCancellation(t *testing.T) {
	l := New()
	release, err := l.Acquire(context.Background(), "listing-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = uow.AcquireBounded(ctx, l, "listing-1", time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := New()
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	release()

	again, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	again()
}
