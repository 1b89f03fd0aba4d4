package middleware

import (
	"context"
	"fmt"

	"rentals/internal/app/commands"
	"rentals/internal/app/queries"
)

// Authorizer vets a command or query before any unit of work is opened.
// Per-booking actor rules are enforced later by the lifecycle table.
type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

type keyed interface{ Key() string }

func guard(a Authorizer) func(ctx context.Context, msg keyed) error {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(ctx context.Context, msg keyed) error {
		if err := a.Authorize(ctx, msg); err != nil {
			return fmt.Errorf("%s: %w", msg.Key(), err)
		}
		return nil
	}
}

func Authorization(a Authorizer) CommandMiddleware {
	check := guard(a)
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	check := guard(a)
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
