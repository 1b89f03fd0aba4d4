package handlers

import (
	"log/slog"
	"time"

	"rentals/internal/app/commands"
	availabilityapp "rentals/internal/app/handlers/availability"
	bookingapp "rentals/internal/app/handlers/booking"
	"rentals/internal/app/middleware"
	"rentals/internal/app/outbox"
	"rentals/internal/app/policies"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	"rentals/internal/domain/availability"
	"rentals/internal/domain/shared/clock"
)

// Deps is what the application layer needs from the process. Idempotency
// and Notifier are optional.
type Deps struct {
	UoWFactory     uow.UoWFactory
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	Notifier       outbox.Notifier
	Retry          middleware.RetryPolicy
	Clock          clock.Clock
	Logger         *slog.Logger
}

type Buses struct {
	Commands    commands.Bus
	Queries     queries.Bus
	Coordinator *bookingapp.Coordinator
}

// Build registers every command and query handler and wraps the buses with
// the middleware chain. Command order, outermost first: idempotency, outbox
// notification, authorization, validation, transaction.
func Build(d Deps) Buses {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Retry.Logger == nil {
		d.Retry.Logger = d.Logger
	}
	coordinator := bookingapp.NewCoordinator(d.UoWFactory, d.Clock, d.Logger)

	commandBus := commands.NewInMemoryBus()
	bookingapp.RegisterCommands(commandBus, coordinator)

	queryBus := queries.NewInMemoryBus()
	(&bookingapp.BookingQueries{UoWFactory: d.UoWFactory}).Register(queryBus)
	(&availabilityapp.Handlers{UoWFactory: d.UoWFactory, Engine: availability.NewEngine(d.Clock)}).Register(queryBus)

	if d.Logger != nil {
		d.Logger.Debug("buses registered", "commands", commandBus.Keys(), "queries", queryBus.Keys())
	}

	validator := middleware.NewStructValidator()
	authorizer := policies.RequirePrincipal{}

	var idempotency, notify middleware.CommandMiddleware
	if d.Idempotency != nil {
		idempotency = middleware.Idempotency(d.Idempotency, middleware.IdempotencyOptions{
			TTL:   d.IdempotencyTTL,
			Clock: d.Clock,
		})
	}
	if d.Notifier != nil {
		notify = middleware.OutboxNotify(d.Notifier)
	}

	return Buses{
		Commands: middleware.ChainCommands(commandBus,
			idempotency,
			notify,
			middleware.Authorization(authorizer),
			middleware.Validation(validator),
			middleware.Transaction(d.UoWFactory, nil, d.Retry),
		),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryAuthorization(authorizer),
			middleware.QueryValidation(validator),
		),
		Coordinator: coordinator,
	}
}
