package rentals

import (
	"context"
	"log/slog"
	"time"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/middleware"
	"rentalcore/internal/app/uow"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/pkg/errs"
)

const expireStaleKey = "rentals.expire_stale"

const defaultSweepBatch = 100

// ExpireStaleCommand expires rentals whose start date passed before they were
// approved and paid. It is issued by the scheduler, never by a user.
type ExpireStaleCommand struct {
	Limit int
}

func (ExpireStaleCommand) Key() string { return expireStaleKey }

func (ExpireStaleCommand) OwnsUnitOfWork() bool { return true }

type ExpireStaleResult struct {
	Expired []string `json:"expired"`
	Skipped int      `json:"skipped"`
}

type ExpireStaleHandler struct {
	support.Mutator
	Logger *slog.Logger
}

// Handle expires the batch rental by rental. A rental that fails to expire is
// counted as skipped and picked up again by the next sweep.
func (h *ExpireStaleHandler) Handle(ctx context.Context, cmd ExpireStaleCommand) (*ExpireStaleResult, error) {
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultSweepBatch
	}
	now := h.Now()

	var stale []*domainrental.Rental
	err := support.WithUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		stale, err = unit.Rentals().ListStale(ctx, now, limit)
		return err
	})
	if err != nil {
		return nil, errs.Wrap(err, "list stale rentals")
	}

	res := &ExpireStaleResult{Expired: []string{}}
	for _, r := range stale {
		_, err := h.Mutate(ctx, string(r.ID), func(_ context.Context, _ uow.UnitOfWork, current *domainrental.Rental, now time.Time) error {
			return current.Expire(now)
		})
		if err != nil {
			res.Skipped++
			h.logger().WarnContext(ctx, "rental not expired", "rental_id", r.ID, "error", err)
			continue
		}
		res.Expired = append(res.Expired, string(r.ID))
	}
	if len(res.Expired) > 0 {
		h.logger().InfoContext(ctx, "stale rentals expired", "count", len(res.Expired))
	}
	return res, nil
}

func (h *ExpireStaleHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var (
	_ commands.Handler[ExpireStaleCommand, *ExpireStaleResult] = (*ExpireStaleHandler)(nil)
	_ middleware.UnitOwner                                     = ExpireStaleCommand{}
)
