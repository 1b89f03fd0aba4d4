package middleware

import (
	"context"

	"rentals/internal/app/commands"
	"rentals/internal/app/outbox"
)

// OutboxNotify wakes the outbox publisher after a command committed. It must
// sit outside Transaction so the notification follows the commit.
func OutboxNotify(n outbox.Notifier) CommandMiddleware {
	if n == nil {
		panic("middleware: outbox notifier required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			n.Notify()
			return res, nil
		})
	}
}
