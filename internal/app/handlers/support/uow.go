package support

import (
	"context"

	"rentalcore/internal/app/outbox"
	"rentalcore/internal/app/uow"
	"rentalcore/internal/domain/shared/events"
	"rentalcore/internal/pkg/errs"
)

// BeginReadOnlyUnit reuses the unit already in ctx or opens a read-only one.
// cleanup is nil when the unit was inherited.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Inject(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(execCtx)
	}
	return newUnit, execCtx, cleanup, nil
}

// WithUnit runs fn inside the unit from ctx, or inside a fresh one that is
// committed when fn succeeds. Handlers use it so they also work off the bus.
func WithUnit(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	execCtx := uow.Inject(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if err := unit.Commit(execCtx); err != nil {
		return errs.Wrap(err, "commit unit of work")
	}
	committed = true
	return nil
}

// Publisher moves pending aggregate events into the outbox.
type Publisher struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
}

type eventSource interface {
	PullEvents() []events.DomainEvent
}

func (p Publisher) Publish(ctx context.Context, src eventSource) error {
	return outbox.RecordDomainEvents(ctx, p.Outbox, p.Encoder, src.PullEvents())
}
