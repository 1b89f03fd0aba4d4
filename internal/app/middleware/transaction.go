package middleware

import (
	"context"
	"log/slog"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// RetryPolicy bounds how often a command is re-run after uow.ErrConflict.
// Attempts counts the first run; Backoff[i] is waited before attempt i+2 and
// the last entry repeats.
type RetryPolicy struct {
	Attempts int
	Backoff  []time.Duration
	Logger   *slog.Logger
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p RetryPolicy) delay(retry int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if retry >= len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[retry]
}

// Transaction runs every command inside its own unit of work and commits on
// success. A command failing with a retryable error is re-run from scratch in
// a fresh unit of work until the policy is exhausted.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider, retry RetryPolicy) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if _, ok := uow.FromContext(ctx); ok {
				return nextFn(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var (
				res any
				err error
			)
			for attempt := 0; attempt < retry.attempts(); attempt++ {
				if attempt > 0 {
					if retry.Logger != nil {
						retry.Logger.Debug("retrying command after conflict", "command", cmd.Key(), "attempt", attempt+1)
					}
					if werr := sleepCtx(ctx, retry.delay(attempt-1)); werr != nil {
						return nil, werr
					}
				}
				res, err = runInUnit(ctx, factory, opts, cmd, nextFn)
				if err == nil || !uow.Retryable(err) {
					return res, err
				}
			}
			return nil, err
		})
	}
}

func runInUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, cmd commands.Command, next commandFunc) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	execCtx := uow.Inject(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(context.WithoutCancel(execCtx))
		}
	}()

	res, err := next(execCtx, cmd)
	if err != nil {
		return nil, err
	}
	// A caller that went away before commit gets nothing persisted.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
