package support

import (
	"context"

	"rentals/internal/app/uow"
)

// Scope is a unit of work either borrowed from the context (the transaction
// middleware owns it) or begun here and owned by the handler.
type Scope struct {
	Unit    uow.UnitOfWork
	Ctx     context.Context
	managed bool
	done    bool
}

// Begin reuses the unit of work carried by ctx or starts a new one.
func Begin(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions) (*Scope, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return &Scope{Unit: unit, Ctx: ctx}, nil
	}
	if factory == nil {
		return nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Scope{Unit: unit, Ctx: uow.Inject(ctx, unit), managed: true}, nil
}

// BeginReadOnly is Begin for queries.
func BeginReadOnly(ctx context.Context, factory uow.UoWFactory) (*Scope, error) {
	return Begin(ctx, factory, uow.TxOptions{ReadOnly: true})
}

// Commit commits an owned unit of work and is a no-op for a borrowed one.
func (s *Scope) Commit() error {
	if !s.managed || s.done {
		return nil
	}
	if err := s.Ctx.Err(); err != nil {
		return err
	}
	s.done = true
	return s.Unit.Commit(s.Ctx)
}

// Close rolls back an owned unit of work that was not committed.
func (s *Scope) Close() {
	if !s.managed || s.done {
		return
	}
	s.done = true
	_ = s.Unit.Rollback(context.WithoutCancel(s.Ctx))
}
