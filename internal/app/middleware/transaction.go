package middleware

import (
	"context"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// UnitOwner is implemented by commands whose handlers open and commit their
// own units, such as sweeps that commit per rental.
type UnitOwner interface {
	OwnsUnitOfWork() bool
}

// Transaction runs each command inside a unit of work and commits only on success.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if _, ok := uow.FromContext(ctx); ok {
				return nextFn(ctx, cmd)
			}
			if owner, ok := cmd.(UnitOwner); ok && owner.OwnsUnitOfWork() {
				return nextFn(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, err
			}
			execCtx := uow.Inject(ctx, unit)
			committed := false
			defer func() {
				if !committed {
					_ = unit.Rollback(execCtx)
				}
			}()

			res, err := nextFn(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, err
			}
			committed = true
			return res, nil
		})
	}
}
