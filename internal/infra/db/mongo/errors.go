package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"rentals/internal/app/uow"
)

var ErrConcurrentUpdate = fmt.Errorf("mongo: concurrent update detected: %w", uow.ErrConflict)

const (
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
)

// commitAttempts bounds CommitTransaction retries on an unknown commit result.
const commitAttempts = 3

func hasLabel(err error, label string) bool {
	var labeled mongo.LabeledError
	return errors.As(err, &labeled) && labeled.HasErrorLabel(label)
}

// mapError turns transaction aborts caused by concurrent writers into
// uow.ErrConflict so the unit of work can be retried. An unknown commit
// result is never a conflict: the first commit may have landed.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, uow.ErrConflict) {
		return err
	}
	if hasLabel(err, labelUnknownCommitResult) {
		return err
	}
	if hasLabel(err, labelTransientTransaction) {
		return fmt.Errorf("%w: %v", uow.ErrConflict, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", uow.ErrConflict, err)
	}
	return err
}

// commitWithRetry re-sends only the commit while the server cannot say
// whether it applied. Commits are idempotent within one session.
func commitWithRetry(ctx context.Context, commit func(context.Context) error) error {
	err := commit(ctx)
	for i := 1; i < commitAttempts && hasLabel(err, labelUnknownCommitResult); i++ {
		if ctx.Err() != nil {
			break
		}
		err = commit(ctx)
	}
	return mapError(err)
}

func timestampToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
