package middleware

import (
	"context"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/pkg/errs"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// SelfValidating messages check their own shape before reaching a handler.
type SelfValidating interface {
	Validate() error
}

// MessageValidator runs Validate on messages that implement SelfValidating and
// marks failures as validation errors.
type MessageValidator struct{}

func (MessageValidator) Validate(_ context.Context, message any) error {
	v, ok := message.(SelfValidating)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		if errs.CategoryOf(err) == nil {
			return errs.Mark(err, errs.ErrValidation)
		}
		return err
	}
	return nil
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := v.Validate(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := v.Validate(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
