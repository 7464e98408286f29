package schedule

import (
	"context"
	"time"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/handlers/rentals"
)

// ExpireStaleJob dispatches the expiry sweep through the command bus.
func ExpireStaleJob(bus commands.Bus, spec string, batch int) Job {
	return Job{
		Name:    "expire-stale-rentals",
		Spec:    spec,
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			_, err := commands.Dispatch[rentals.ExpireStaleCommand, *rentals.ExpireStaleResult](ctx, bus, rentals.ExpireStaleCommand{Limit: batch})
			return err
		},
	}
}
