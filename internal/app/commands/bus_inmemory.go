package commands

import (
	"context"
	"sort"

	"rentalcore/internal/pkg/errs"
)

type commandHandler func(ctx context.Context, cmd Command) (any, error)

// InMemoryBus keeps handlers in a registry keyed by command key.
type InMemoryBus struct {
	handlers map[string]commandHandler
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]commandHandler)}
}

// RegisterRaw attaches a raw handler function to the provided command key.
func (b *InMemoryBus) RegisterRaw(key string, handler commandHandler) {
	if key == "" {
		panic("commands: empty key registration")
	}
	if _, dup := b.handlers[key]; dup {
		panic("commands: duplicate registration for " + key)
	}
	b.handlers[key] = handler
}

func (b *InMemoryBus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	h, ok := b.handlers[cmd.Key()]
	if !ok {
		return nil, errs.Wrapf(ErrHandlerNotFound, "key %q", cmd.Key())
	}
	return h(ctx, cmd)
}

// Keys lists registered command keys, mostly for startup logging.
func (b *InMemoryBus) Keys() []string {
	out := make([]string, 0, len(b.handlers))
	for k := range b.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RegisterHandler registers a strongly typed handler on the in-memory bus.
func RegisterHandler[C Command, R any](bus *InMemoryBus, key string, handler Handler[C, R]) {
	if bus == nil {
		panic("commands: nil bus")
	}
	bus.RegisterRaw(key, func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := any(raw).(C)
		if !ok {
			return nil, errs.Wrapf(ErrInvalidCommand, "%s got %T", key, raw)
		}
		return handler.Handle(ctx, cmd)
	})
}

// RegisterFunc registers a plain function as the handler for key.
func RegisterFunc[C Command, R any](bus *InMemoryBus, key string, fn func(ctx context.Context, cmd C) (R, error)) {
	RegisterHandler[C, R](bus, key, HandlerFunc[C, R](fn))
}
