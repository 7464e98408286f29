package watch

import (
	"context"
	"time"

	"rentalcore/internal/pkg/errs"
)

const DefaultInterval = 5 * time.Second

var ErrFetchRequired = errs.New("watch: fetch callback required")

// Poller re-fetches a value at a fixed interval until the value reports it is
// settled or the context is cancelled. Fetch errors are reported through
// OnError and do not stop the loop.
type Poller[T any] struct {
	Interval time.Duration
	Fetch    func(ctx context.Context) (T, error)
	Settled  func(T) bool
	OnUpdate func(T)
	OnError  func(error)
}

// Run fetches immediately, then on every tick. It returns the settled value,
// or the last value seen together with ctx.Err() when cancelled.
func (p *Poller[T]) Run(ctx context.Context) (T, error) {
	var last T
	if p.Fetch == nil {
		return last, ErrFetchRequired
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v, err := p.Fetch(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if p.OnError != nil {
				p.OnError(err)
			}
		default:
			last = v
			if p.OnUpdate != nil {
				p.OnUpdate(v)
			}
			if p.Settled != nil && p.Settled(v) {
				return v, nil
			}
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
