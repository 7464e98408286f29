package queries

import (
	"context"

	"rentalcore/internal/pkg/errs"
)

type queryHandler func(ctx context.Context, q Query) (any, error)

type InMemoryBus struct {
	handlers map[string]queryHandler
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]queryHandler)}
}

func (b *InMemoryBus) RegisterRaw(key string, handler queryHandler) {
	if key == "" {
		panic("queries: empty key registration")
	}
	b.handlers[key] = handler
}

func (b *InMemoryBus) Ask(ctx context.Context, query Query) (any, error) {
	h, ok := b.handlers[query.Key()]
	if !ok {
		return nil, errs.Wrapf(ErrHandlerNotFound, "key %q", query.Key())
	}
	return h(ctx, query)
}

func RegisterHandler[Q Query, R any](bus *InMemoryBus, key string, handler Handler[Q, R]) {
	if bus == nil {
		panic("queries: nil bus")
	}
	bus.RegisterRaw(key, func(ctx context.Context, raw Query) (any, error) {
		q, ok := any(raw).(Q)
		if !ok {
			return nil, errs.Wrapf(ErrInvalidQuery, "%s got %T", key, raw)
		}
		return handler.Handle(ctx, q)
	})
}

// RegisterFunc registers a plain function as the handler for key.
func RegisterFunc[Q Query, R any](bus *InMemoryBus, key string, fn func(ctx context.Context, q Q) (R, error)) {
	RegisterHandler[Q, R](bus, key, HandlerFunc[Q, R](fn))
}
